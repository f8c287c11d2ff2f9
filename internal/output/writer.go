// Package output renders conversion results as JSON.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Indent is the indentation used for pretty output.
const Indent = "  "

// Marshal encodes v as JSON followed by a newline, indented when pretty is set.
func Marshal(v any, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", Indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes v to w followed by a newline.
func Write(w io.Writer, v any, pretty bool) error {
	data, err := Marshal(v, pretty)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// WriteFile encodes v into the file at path. The file is written to a
// temporary sibling first and renamed into place, so a failed conversion
// never leaves a truncated file behind.
func WriteFile(path string, v any, pretty bool) error {
	data, err := Marshal(v, pretty)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// To writes v to path when path is set, otherwise to w.
func To(path string, w io.Writer, v any, pretty bool) error {
	if path == "" {
		return Write(w, v, pretty)
	}
	return WriteFile(path, v, pretty)
}
