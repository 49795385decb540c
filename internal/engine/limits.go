package engine

// MaxKeyLength bounds the size of a key accepted by the engine. Mirrors the
// teacher's internal/storage/entry.go MaxKeyLength and the "Security: Limit
// key ... length to prevent abuse" guard in internal/storage/storage.go's
// Append — the spec places no ceiling on values, so only keys are bounded
// here.
const MaxKeyLength = 65535

// DefaultCompactionThreshold is the number of mutations after which the
// engine rewrites its log. Spec.md §4.D / §9 calls for "a value in the
// order of 10^4".
const DefaultCompactionThreshold = 10_000
