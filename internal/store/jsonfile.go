package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/stationflow/pkg/schema"
)

// fileWriter replaces a file atomically: temp file in the target directory,
// write, fsync, size check, close, rename. The hooks exist for tests.
type fileWriter struct {
	rename func(oldpath, newpath string) error
}

func newFileWriter() *fileWriter {
	return &fileWriter{rename: os.Rename}
}

// writeJSON encodes v with two-space indentation and replaces path with it.
// On any failure the previous content of path is left untouched.
func (w *fileWriter) writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "encode %s", filepath.Base(path)).WithCause(err)
	}
	return w.write(path, buf.Bytes())
}

func (w *fileWriter) write(path string, data []byte) error {
	if len(data) == 0 {
		return schema.NewErrorf(schema.ErrCodeStore, "refusing to write empty %s", filepath.Base(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return storeErr(path, "create directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return storeErr(path, "create temp file", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return storeErr(path, "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return storeErr(path, "sync temp file", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		_ = tmp.Close()
		return storeErr(path, "stat temp file", err)
	}
	if info.Size() != int64(len(data)) {
		_ = tmp.Close()
		return schema.NewErrorf(schema.ErrCodeStore, "short write on %s: %d of %d bytes",
			filepath.Base(path), info.Size(), len(data))
	}
	if err := tmp.Close(); err != nil {
		return storeErr(path, "close temp file", err)
	}
	if err := w.rename(tmpName, path); err != nil {
		return storeErr(path, "replace file", err)
	}
	committed = true
	return nil
}

// readFile returns the content of path; exists is false when the file is missing.
func readFile(path string) (data []byte, exists bool, err error) {
	data, err = os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, storeErr(path, "read", err)
	}
	return data, true, nil
}

// quarantine copies an undecodable file aside so a later save cannot lose it.
func quarantine(path string, data []byte, stamp string) (string, error) {
	dst := fmt.Sprintf("%s.corrupt.%s", path, stamp)
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}

// firstByte returns the first non-space byte of data, or 0.
func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func storeErr(path, op string, err error) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeStore, "%s %s", op, filepath.Base(path)).WithCause(err)
}
