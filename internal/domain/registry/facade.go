package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/corey/erpkb/internal/domain/catalog"
	"github.com/corey/erpkb/internal/ports"
)

// Facade is the bound, capability-gated view of one backend. Requesting a
// capability the descriptor does not claim fails with
// ports.ErrCapabilityNotSupported — never a silent nil.
type Facade struct {
	desc ports.BackendDescriptor
	mod  *Module
}

// Descriptor returns the backend's static identity.
func (f *Facade) Descriptor() ports.BackendDescriptor { return f.desc }

func (f *Facade) require(c ports.Capability) error {
	if !f.desc.Capabilities.Has(c) {
		return fmt.Errorf("backend %s, capability %s: %w",
			f.desc.Key, c, ports.ErrCapabilityNotSupported)
	}
	return nil
}

// Knowledge returns the operations-catalog resolver.
func (f *Facade) Knowledge() (*catalog.Resolver, error) {
	if err := f.require(ports.CapKnowledge); err != nil {
		return nil, err
	}
	return f.mod.Resolver(CatalogOperations), nil
}

// Flows returns the flows-catalog resolver.
func (f *Facade) Flows() (*catalog.Resolver, error) {
	if err := f.require(ports.CapFlow); err != nil {
		return nil, err
	}
	return f.mod.Resolver(CatalogFlows), nil
}

// Diagnostics returns the errors-catalog resolver.
func (f *Facade) Diagnostics() (*catalog.Resolver, error) {
	if err := f.require(ports.CapDiagnostics); err != nil {
		return nil, err
	}
	return f.mod.Resolver(CatalogErrors), nil
}

// Recommendations returns the recommendations-catalog resolver.
func (f *Facade) Recommendations() (*catalog.Resolver, error) {
	if err := f.require(ports.CapRecommendation); err != nil {
		return nil, err
	}
	return f.mod.Resolver(CatalogRecommendations), nil
}

// Validator returns the payload validator, backed by the operations catalog.
func (f *Facade) Validator() (*Validator, error) {
	if err := f.require(ports.CapValidation); err != nil {
		return nil, err
	}
	return &Validator{ops: f.mod.Resolver(CatalogOperations)}, nil
}

// ResolverFor maps a capability wire name to its resolver. Used by the
// protocol layer, which receives the capability as a string.
func (f *Facade) ResolverFor(capability string) (*catalog.Resolver, error) {
	c, ok := ports.ParseCapability(capability)
	if !ok {
		return nil, fmt.Errorf("capability %q: %w", capability, ports.ErrCapabilityNotSupported)
	}
	switch c {
	case ports.CapKnowledge:
		return f.Knowledge()
	case ports.CapFlow:
		return f.Flows()
	case ports.CapDiagnostics:
		return f.Diagnostics()
	case ports.CapRecommendation:
		return f.Recommendations()
	default:
		return nil, fmt.Errorf("capability %q has no catalog: %w", capability, ports.ErrCapabilityNotSupported)
	}
}

// ValidationResult reports how a field set compares to an operation's schema.
type ValidationResult struct {
	Operation       string   `json:"operation"`
	Known           bool     `json:"known"`
	MissingRequired []string `json:"missing_required,omitempty"`
	UnknownFields   []string `json:"unknown_fields,omitempty"`
}

// Valid reports whether the operation is known and the field set satisfies
// its schema.
func (r *ValidationResult) Valid() bool {
	return r.Known && len(r.MissingRequired) == 0 && len(r.UnknownFields) == 0
}

// Validator checks request field sets against operation schemas. An
// operation entry declares "fields" (all accepted) and "required_fields"
// (must be present) as string arrays in its content.
type Validator struct {
	ops *catalog.Resolver
}

// ValidateFields resolves operation and compares the provided field names
// against its schema, case-insensitively. An unknown operation yields
// Known=false, not an error.
func (v *Validator) ValidateFields(ctx context.Context, operation string, provided []string) (*ValidationResult, error) {
	entry, err := v.ops.Resolve(ctx, operation)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &ValidationResult{Operation: operation}, nil
	}

	res := &ValidationResult{Operation: entry.Name, Known: true}
	have := make(map[string]bool, len(provided))
	for _, f := range provided {
		have[strings.ToLower(f)] = true
	}

	for _, req := range stringSlice(entry.Content["required_fields"]) {
		if !have[strings.ToLower(req)] {
			res.MissingRequired = append(res.MissingRequired, req)
		}
	}

	if fields := stringSlice(entry.Content["fields"]); len(fields) > 0 {
		known := make(map[string]bool, len(fields))
		for _, f := range fields {
			known[strings.ToLower(f)] = true
		}
		for _, f := range provided {
			if !known[strings.ToLower(f)] {
				res.UnknownFields = append(res.UnknownFields, f)
			}
		}
	}
	return res, nil
}

// stringSlice coerces decoded JSON ([]any) to []string, dropping non-strings.
func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
