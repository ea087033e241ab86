package ports

import "errors"

// Sentinel errors shared across the engine. Adapters and domain packages wrap
// these with fmt.Errorf("...: %w", ...) so callers can classify failures with
// errors.Is without depending on concrete implementations.
var (
	// ErrNotFound marks the absence of an optional result: a catalog or
	// entry the store does not carry. Recoverable — resolvers convert it
	// to an empty result and log at info level.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a backend registration collides
	// with an already-registered key or alias.
	ErrDuplicateKey = errors.New("duplicate backend key")

	// ErrUnknownBackend is returned when no descriptor matches the
	// requested backend key or alias.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrCapabilityNotSupported is returned when a facade is asked for a
	// capability its descriptor does not claim.
	ErrCapabilityNotSupported = errors.New("capability not supported")

	// ErrStoreUnavailable marks a knowledge-store read failure. Hard —
	// propagated to the caller, never cached, never hidden behind a
	// default value.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")
)
