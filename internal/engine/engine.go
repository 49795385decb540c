// Package engine implements the log-structured storage engine: an
// append-only command log, an in-memory key->log-offset index, crash-safe
// replay, and compaction. Grounded on the teacher's
// internal/storage/storage.go Manager/Bucket pair, collapsed from the
// teacher's 16-way sharded layout to the single file per instance spec.md
// §6 requires, plus amanlalwani007-godb/kv/kv.go for the atomic
// write-new-then-rename compaction mechanics.
package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"kvs/internal/codec"
	"kvs/internal/logger"
)

// Engine is the capability set spec.md §9 asks implementers to define:
// set/get/remove over opaque string keys and values. LogEngine implements
// it; any alternative backend (the spec's out-of-scope "sled" engine) only
// needs to satisfy this interface to be usable behind a SharedEngine.
type Engine interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	Remove(key string) error
}

// LogEngine is the log-structured Engine implementation. It is not safe
// for concurrent use on its own — wrap it in a SharedEngine to share it
// across goroutines, mirroring original_source's SharedKvsEngine
// (Arc<Mutex<dyn KvsEngine>>).
type LogEngine struct {
	dir                 string
	log                 *LogFile
	index               *Index
	mutations           int
	compactionThreshold int

	needsTruncate bool
	validSize     int64
}

// Open opens dir (creating it if absent), opens/creates its log file, and
// replays the log to rebuild the index. A mid-file decode error is fatal;
// a trailing partial record (crash mid-append) is discarded from the
// in-memory replay and scheduled for truncation on the next mutation,
// rather than rewritten immediately.
func Open(dir string, compactionThreshold int) (*LogEngine, error) {
	if compactionThreshold <= 0 {
		compactionThreshold = DefaultCompactionThreshold
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	logPath := filepath.Join(dir, LogFileName)
	lf, err := OpenLogFile(logPath)
	if err != nil {
		return nil, err
	}

	raw, err := lf.ReadAll()
	if err != nil {
		lf.Close()
		return nil, err
	}
	idx, validSize, err := replay(raw)
	if err != nil {
		lf.Close()
		return nil, err
	}

	e := &LogEngine{
		dir:                 dir,
		log:                 lf,
		index:               idx,
		compactionThreshold: compactionThreshold,
		validSize:           validSize,
		needsTruncate:       validSize < int64(len(raw)),
	}
	return e, nil
}

// replay scans raw (the full current log content) record by record,
// rebuilding an index. It returns the index, the byte length actually
// consumed by complete, newline-terminated records (validSize may be
// shorter than len(raw) if the log ends in a truncated trailing record),
// and an error if a non-trailing record fails to decode.
func replay(raw []byte) (*Index, int64, error) {
	idx := NewIndex()
	var offset int64
	remaining := raw
	for len(remaining) > 0 {
		nl := bytes.IndexByte(remaining, '\n')
		if nl < 0 {
			// Trailing partial record: stop here, do not count it as valid.
			break
		}
		line := remaining[:nl]
		begin := offset
		end := offset + int64(nl) + 1

		rec, err := codec.Decode(line)
		if err != nil {
			return nil, 0, &CorruptLogError{Offset: begin, Cause: err}
		}
		switch rec.Op {
		case codec.OpSet:
			idx.Set(rec.Key, byteRange{Begin: begin, End: end})
		case codec.OpRemove:
			idx.Delete(rec.Key)
		case codec.OpGet:
			return nil, 0, &CorruptLogError{Offset: begin, Cause: fmt.Errorf("get record found in log")}
		}

		remaining = remaining[nl+1:]
		offset = end
	}
	return idx, offset, nil
}

func (e *LogEngine) applyPendingTruncate() error {
	if !e.needsTruncate {
		return nil
	}
	if err := e.log.Truncate(e.validSize); err != nil {
		return err
	}
	e.needsTruncate = false
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLarge
	}
	return nil
}

// Set establishes or replaces the binding for key.
func (e *LogEngine) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := e.applyPendingTruncate(); err != nil {
		return err
	}
	rec := codec.Set(key, value)
	r, err := e.log.Append(codec.Encode(rec))
	if err != nil {
		return err
	}
	e.index.Set(key, r)
	e.mutations++
	e.compactIfDue()
	return nil
}

// Get returns the current value for key, and whether key is bound.
func (e *LogEngine) Get(key string) (string, bool, error) {
	r, ok := e.index.Get(key)
	if !ok {
		return "", false, nil
	}
	raw, err := e.log.ReadRange(r)
	if err != nil {
		return "", false, err
	}
	line := bytes.TrimSuffix(raw, []byte("\n"))
	rec, err := codec.Decode(line)
	if err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

// Entries returns every currently-bound key and its value, read fresh
// from the log via the index. Used by the --export administrative path
// (internal/backup); never called on the server's request-handling path.
func (e *LogEngine) Entries() (map[string]string, error) {
	snapshot := e.index.Snapshot()
	out := make(map[string]string, len(snapshot))
	for key, r := range snapshot {
		raw, err := e.log.ReadRange(r)
		if err != nil {
			return nil, err
		}
		line := bytes.TrimSuffix(raw, []byte("\n"))
		rec, err := codec.Decode(line)
		if err != nil {
			return nil, err
		}
		out[key] = rec.Value
	}
	return out, nil
}

// Remove erases the binding for key. It fails with *KeyNotFoundError if
// key was not bound, and leaves the log untouched in that case.
func (e *LogEngine) Remove(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if _, ok := e.index.Get(key); !ok {
		return &KeyNotFoundError{Key: key}
	}
	if err := e.applyPendingTruncate(); err != nil {
		return err
	}
	rec := codec.Remove(key)
	if _, err := e.log.Append(codec.Encode(rec)); err != nil {
		return err
	}
	e.index.Delete(key)
	e.mutations++
	e.compactIfDue()
	return nil
}

func (e *LogEngine) compactIfDue() {
	if e.mutations < e.compactionThreshold {
		return
	}
	if err := e.Compact(); err != nil {
		logger.Error("compaction failed: %v", err)
	}
}

// Compact rewrites the log to contain only the latest Set record for each
// currently-bound key, copied verbatim from the old log, then atomically
// replaces the log file and resets the mutation counter. On failure the
// old log (and index) are left exactly as they were.
func (e *LogEngine) Compact() error {
	snapshot := e.index.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	newIndex := NewIndex()
	for _, key := range keys {
		r := snapshot[key]
		raw, err := e.log.ReadRange(r)
		if err != nil {
			return err
		}
		begin := int64(buf.Len())
		buf.Write(raw)
		newIndex.Set(key, byteRange{Begin: begin, End: int64(buf.Len())})
	}

	if err := e.log.Replace(buf.Bytes()); err != nil {
		return err
	}
	e.index = newIndex
	e.mutations = 0
	logger.Info("compacted log: %d keys, %d bytes", len(keys), buf.Len())
	return nil
}

// Close releases the engine's file handle. No explicit close is required
// by spec.md §3's lifecycle, but it is provided for orderly shutdown.
func (e *LogEngine) Close() error {
	return e.log.Close()
}
