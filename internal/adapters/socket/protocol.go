// Package socket implements the query protocol for the erpkb daemon:
// newline-delimited JSON over a Unix socket, one JSON object per message.
// This is the protocol-facing edge of the engine — it translates wire
// requests into registry/facade calls and the error taxonomy into wire
// errors.
package socket

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"

	"github.com/corey/erpkb/internal/domain/match"
)

// SocketPath returns the Unix socket path for a given knowledge root.
// Format: /tmp/erpkb-{first12hex}.sock
func SocketPath(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	h := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("/tmp/erpkb-%x.sock", h[:6])
}

// Method names for the protocol.
const (
	MethodHealth    = "health"
	MethodBackends  = "backends"
	MethodResolve   = "resolve"
	MethodNames     = "names"
	MethodSearch    = "search"
	MethodReference = "reference"
	MethodValidate  = "validate"
	MethodShutdown  = "shutdown"
)

// Request is the wire format for client-to-server messages. An empty ID is
// assigned by the server so every response is correlatable.
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// Response is the wire format for server-to-client messages.
type Response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BackendParams addresses one backend and capability. Capability defaults
// to "knowledge" when empty.
type BackendParams struct {
	Backend    string `json:"backend"`
	Capability string `json:"capability,omitempty"`
}

// ResolveParams asks for one entry by approximate name.
type ResolveParams struct {
	BackendParams
	Name string `json:"name"`
}

// SearchParams asks which entries' content matches the given keywords.
// Threshold 0 means the server's configured keyword threshold.
type SearchParams struct {
	BackendParams
	Keywords  []string `json:"keywords"`
	Threshold float64  `json:"threshold,omitempty"`
}

// ReferenceParams asks which entry declares the given back-reference.
type ReferenceParams struct {
	BackendParams
	Reference string `json:"reference"`
}

// ValidateParams asks whether a field set satisfies an operation's schema.
type ValidateParams struct {
	Backend   string   `json:"backend"`
	Operation string   `json:"operation"`
	Fields    []string `json:"fields"`
}

// HealthResult is the result of a health request.
type HealthResult struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Backends int    `json:"backends"`
}

// BackendInfo is one registered backend on the wire.
type BackendInfo struct {
	Key          string   `json:"key"`
	Aliases      []string `json:"aliases,omitempty"`
	Capabilities []string `json:"capabilities"`
	Version      string   `json:"version,omitempty"`
	Description  string   `json:"description,omitempty"`
}

// BackendsResult lists the registered backends.
type BackendsResult struct {
	Backends []BackendInfo `json:"backends"`
}

// EntryInfo is one resolved catalog entry on the wire.
type EntryInfo struct {
	Name    string         `json:"name"`
	Content map[string]any `json:"content"`
	UsedBy  []string       `json:"used_by,omitempty"`
}

// ResolveResult carries the resolved entry, or fuzzy name suggestions when
// nothing resolved ("did you mean" — never silently substituted).
type ResolveResult struct {
	Found       bool              `json:"found"`
	Entry       *EntryInfo        `json:"entry,omitempty"`
	Suggestions []match.Candidate `json:"suggestions,omitempty"`
}

// NamesResult lists a catalog's entry names.
type NamesResult struct {
	Names []string `json:"names"`
}

// SearchResult maps matched entry names to the keywords that hit them.
type SearchResult struct {
	Hits map[string][]string `json:"hits"`
}

// ReferenceResult names the entry that declares the reference, if any.
type ReferenceResult struct {
	Found bool   `json:"found"`
	Entry string `json:"entry,omitempty"`
}
