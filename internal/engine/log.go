package engine

import (
	"io"
	"os"
	"path/filepath"
)

// LogFileName is the single on-disk file that holds a log engine's records.
const LogFileName = "kvs.log"

// byteRange is the half-open [Begin, End) span of one encoded record inside
// a log file.
type byteRange struct {
	Begin int64
	End   int64
}

// LogFile is the append-only byte sequence backing an engine instance. It
// is not safe for concurrent use by itself; callers serialize access (see
// SharedEngine).
type LogFile struct {
	path string
	file *os.File
	size int64
}

// OpenLogFile opens (creating if absent) the log file at path and reports
// its current size.
func OpenLogFile(path string) (*LogFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &LogFile{path: path, file: f, size: info.Size()}, nil
}

// Append atomically extends the file with data and returns the byte range
// it was assigned.
func (l *LogFile) Append(data []byte) (byteRange, error) {
	begin := l.size
	n, err := l.file.Write(data)
	if err != nil {
		return byteRange{}, err
	}
	if err := l.file.Sync(); err != nil {
		return byteRange{}, err
	}
	l.size += int64(n)
	return byteRange{Begin: begin, End: l.size}, nil
}

// ReadAll returns the full current content of the log.
func (l *LogFile) ReadAll() ([]byte, error) {
	buf := make([]byte, l.size)
	if _, err := l.file.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadRange returns the bytes in [r.Begin, r.End).
func (l *LogFile) ReadRange(r byteRange) ([]byte, error) {
	buf := make([]byte, r.End-r.Begin)
	if _, err := l.file.ReadAt(buf, r.Begin); err != nil {
		return nil, err
	}
	return buf, nil
}

// Truncate discards a trailing partial record left by a crash mid-append,
// reducing the log to the last known-good size.
func (l *LogFile) Truncate(size int64) error {
	if err := l.file.Truncate(size); err != nil {
		return err
	}
	if _, err := l.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	l.size = size
	return nil
}

// Replace rewrites the log to contain exactly data, all-or-nothing from the
// caller's perspective: write a sibling temp file, fsync it, rename it over
// the live log, then fsync the containing directory. Grounded on
// amanlalwani007-godb/kv/kv.go's Compact.
func (l *LogFile) Replace(data []byte) error {
	dir := filepath.Dir(l.path)
	tmpPath := l.path + ".compact.tmp"

	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := fsyncDir(dir); err != nil {
		return err
	}

	if err := l.file.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.size = int64(len(data))
	return nil
}

// Close closes the underlying file handle.
func (l *LogFile) Close() error {
	return l.file.Close()
}

func fsyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
