// Package jsonfile writes report artifacts as indented JSON files.
package jsonfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "dosa-orders/pkg/errors"
)

// Indent is the per-level indentation of every artifact.
const Indent = "    "

// Marshal encodes v with four-space indentation, no HTML escaping and no
// trailing newline.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", Indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Write serializes v to path atomically: the bytes go to a temp file in the
// same directory which is synced and then renamed over path. The parent
// directory must already exist.
func Write(v any, path string) error {
	data, err := Marshal(v)
	if err != nil {
		return apperrors.NewIOError(path, "failed to encode JSON", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return apperrors.NewIOError(path, "failed to open destination for writing", err)
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	fail := func(msg string, cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return apperrors.NewIOError(path, msg, cause)
	}

	bw := bufio.NewWriter(tmp)
	if _, err := bw.Write(data); err != nil {
		return fail("failed to write JSON", err)
	}
	if err := bw.Flush(); err != nil {
		return fail("failed to flush JSON", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("failed to sync JSON", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return apperrors.NewIOError(path, "failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return apperrors.NewIOError(path, "failed to move temp file into place", err)
	}
	// best effort; some platforms cannot fsync a directory
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
