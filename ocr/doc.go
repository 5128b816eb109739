package ocr

// Package ocr defines the engine contract and the invoker that drives it.
// The interfaces are intentionally small and transport-agnostic so engines can
// be backed by native libraries, local binaries, or remote APIs without
// leaking provider-specific concerns into callers. The invoker owns the
// timeout: no engine call outlives it, and no partial result escapes it.
