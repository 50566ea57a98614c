package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadDocument_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	content := "Going to the park tomorrow at noon.\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	doc, err := readDocument([]string{path})
	if err != nil {
		t.Fatalf("readDocument() error = %v", err)
	}
	if doc != content {
		t.Errorf("readDocument() = %q, want %q", doc, content)
	}
}

func TestReadDocument_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.txt")

	_, err := readDocument([]string{path})
	if err == nil {
		t.Fatal("readDocument() expected error for missing file")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q should name the file %q", err, path)
	}
}

func TestReadDocument_FromStdin(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no args", args: nil},
		{name: "dash", args: []string{"-"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, w, err := os.Pipe()
			if err != nil {
				t.Fatalf("creating pipe: %v", err)
			}
			orig := os.Stdin
			os.Stdin = r
			t.Cleanup(func() { os.Stdin = orig })

			const content = "piped document text"
			if _, err := w.WriteString(content); err != nil {
				t.Fatalf("writing pipe: %v", err)
			}
			w.Close()

			doc, err := readDocument(tt.args)
			if err != nil {
				t.Fatalf("readDocument() error = %v", err)
			}
			if doc != content {
				t.Errorf("readDocument() = %q, want %q", doc, content)
			}
		})
	}
}
