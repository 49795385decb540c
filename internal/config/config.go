// Package config holds the validated settings for both binaries and the
// Config error kind from spec.md §7. Field shape is grounded on the
// teacher's internal/types.DBSchemaConfig (DataPath, SyncMode), extended
// per SPEC_FULL.md §6's CLI surface.
package config

import "fmt"

// ConfigError reports an invalid flag value, caught by the outer CLI
// layer before the engine or server starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Engine names the storage backend. Only Kvs is implemented; Sled is
// accepted as a recognized name and rejected with a ConfigError, since
// no embedded B-tree backend is in scope.
type Engine string

const (
	EngineKvs  Engine = "kvs"
	EngineSled Engine = "sled"
)

// ServerConfig is the validated configuration for cmd/kvs-server.
type ServerConfig struct {
	Addr                string
	DataPath            string
	Engine              Engine
	Workers             int
	Quiet               bool
	MaxRequestBytes     int64
	CompactionThreshold int
	ExportPath          string
	VerifyOnly          bool
}

// DefaultMaxRequestBytes mirrors internal/server.DefaultMaxRequestBytes;
// duplicated here (rather than imported) so this package stays free of a
// dependency on internal/server.
const DefaultMaxRequestBytes = 1 << 20

// DefaultCompactionThreshold mirrors internal/engine.DefaultCompactionThreshold;
// duplicated here for the same reason as DefaultMaxRequestBytes above.
const DefaultCompactionThreshold = 10_000

// Validate checks field-level invariants not enforceable by the flag
// package itself (empty address, unknown engine name, non-positive
// worker count).
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "addr", Reason: "must not be empty"}
	}
	if c.DataPath == "" {
		return &ConfigError{Field: "dir", Reason: "must not be empty"}
	}
	switch c.Engine {
	case EngineKvs:
	case EngineSled:
		return &ConfigError{Field: "engine", Reason: "sled backend is not implemented"}
	default:
		return &ConfigError{Field: "engine", Reason: fmt.Sprintf("unknown engine %q", c.Engine)}
	}
	if c.Workers <= 0 {
		return &ConfigError{Field: "workers", Reason: "must be positive"}
	}
	if c.MaxRequestBytes <= 0 {
		return &ConfigError{Field: "max-request-bytes", Reason: "must be positive"}
	}
	if c.CompactionThreshold <= 0 {
		return &ConfigError{Field: "compaction-threshold", Reason: "must be positive"}
	}
	return nil
}

// ClientConfig is the validated configuration for cmd/kvs-client.
type ClientConfig struct {
	Addr string
}

// Validate checks that Addr was supplied.
func (c *ClientConfig) Validate() error {
	if c.Addr == "" {
		return &ConfigError{Field: "addr", Reason: "must not be empty"}
	}
	return nil
}
