package engine

import (
	"errors"
	"fmt"
)

// KeyNotFoundError is returned by Remove when the key has no current
// binding.
type KeyNotFoundError struct {
	Key string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key not found: %q", e.Key)
}

// IsKeyNotFound reports whether err is (or wraps) a *KeyNotFoundError.
func IsKeyNotFound(err error) bool {
	var target *KeyNotFoundError
	return errors.As(err, &target)
}

// CorruptLogError reports a mid-file decode failure during replay. Per
// spec.md §4.D this is always fatal to Open.
type CorruptLogError struct {
	Offset int64
	Cause  error
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt log at offset %d: %v", e.Offset, e.Cause)
}

func (e *CorruptLogError) Unwrap() error { return e.Cause }

// ErrKeyTooLarge is returned when a key exceeds MaxKeyLength.
var ErrKeyTooLarge = errors.New("engine: key exceeds maximum length")

// ErrEmptyKey is returned when an operation is given an empty key.
var ErrEmptyKey = errors.New("engine: key must not be empty")
