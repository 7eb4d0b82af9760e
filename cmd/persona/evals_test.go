package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/discochess/persona/internal/blob/diskblob"
)

func TestOpenBlobStore_Local(t *testing.T) {
	ctx := context.Background()
	for _, loc := range []string{t.TempDir(), "file://" + t.TempDir()} {
		s, err := openBlobStore(ctx, loc)
		if err != nil {
			t.Fatalf("openBlobStore(%q) error = %v", loc, err)
		}
		if _, ok := s.(*diskblob.Store); !ok {
			t.Errorf("openBlobStore(%q) = %T, want *diskblob.Store", loc, s)
		}
		s.Close()
	}
}

func TestOpenBlobStore_UnknownScheme(t *testing.T) {
	if _, err := openBlobStore(context.Background(), "ftp://host/evals"); err == nil {
		t.Error("openBlobStore(ftp://) should fail")
	}
}

func TestOpenSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evals.jsonl")
	if err := os.WriteFile(path, []byte(`{"fen":"x","evals":[]}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := openSource(context.Background(), path)
	if err != nil {
		t.Fatalf("openSource() error = %v", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading source: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"fen":"x"`) {
		t.Errorf("source = %q", data)
	}
}
