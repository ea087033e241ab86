package ports

import "strings"

// Capability is a bitset of features a backend may support.
type Capability uint8

const (
	// CapKnowledge is operation/field knowledge lookup.
	CapKnowledge Capability = 1 << iota
	// CapFlow is integration flow lookup.
	CapFlow
	// CapValidation is request payload validation against operation schemas.
	CapValidation
	// CapDiagnostics is error-knowledge lookup.
	CapDiagnostics
	// CapRecommendation is usage recommendation lookup.
	CapRecommendation
)

// capNames maps each capability bit to its wire name, in bit order.
var capNames = []struct {
	bit  Capability
	name string
}{
	{CapKnowledge, "knowledge"},
	{CapFlow, "flow"},
	{CapValidation, "validation"},
	{CapDiagnostics, "diagnostics"},
	{CapRecommendation, "recommendation"},
}

// Has reports whether all bits of c2 are set in c.
func (c Capability) Has(c2 Capability) bool {
	return c&c2 == c2
}

// Names returns the wire names of the set bits, in bit order.
func (c Capability) Names() []string {
	var out []string
	for _, cn := range capNames {
		if c.Has(cn.bit) {
			out = append(out, cn.name)
		}
	}
	return out
}

// String returns the set bits joined by "|", or "none".
func (c Capability) String() string {
	names := c.Names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// ParseCapability resolves a wire name to its capability bit.
// Unknown names return (0, false).
func ParseCapability(name string) (Capability, bool) {
	for _, cn := range capNames {
		if strings.EqualFold(name, cn.name) {
			return cn.bit, true
		}
	}
	return 0, false
}

// BackendDescriptor is the static identity of one pluggable ERP backend.
// Key is unique across the registry; at most one descriptor claims any alias.
type BackendDescriptor struct {
	Key          string
	Aliases      []string
	Capabilities Capability
	Version      string
	Description  string
}

// Matches reports whether input equals the key or any alias, case-insensitively.
func (d BackendDescriptor) Matches(input string) bool {
	if strings.EqualFold(d.Key, input) {
		return true
	}
	for _, a := range d.Aliases {
		if strings.EqualFold(a, input) {
			return true
		}
	}
	return false
}
