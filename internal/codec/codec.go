// Package codec provides compression for evaluation shards, game archives
// and feature exports.
package codec

import (
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Codec provides compression and decompression functionality.
type Codec interface {
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Extension returns the file extension without dot (e.g., "zst", "gz").
	// Returns empty string for no compression.
	Extension() string
}

// Compile-time checks that the codecs implement Codec.
var (
	_ Codec = Zstd{}
	_ Codec = Gzip{}
	_ Codec = None{}
)

// Zstd implements zstd compression.
type Zstd struct{}

// Reader wraps r to decompress zstd data.
func (Zstd) Reader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// Writer wraps w to compress data with zstd.
func (Zstd) Writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

// Extension returns "zst".
func (Zstd) Extension() string { return "zst" }

// Gzip implements gzip compression.
type Gzip struct{}

// Reader wraps r to decompress gzip data.
func (Gzip) Reader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

// Writer wraps w to compress data with gzip.
func (Gzip) Writer(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriter(w), nil
}

// Extension returns "gz".
func (Gzip) Extension() string { return "gz" }

// None passes data through unchanged.
type None struct{}

// Reader returns r unchanged.
func (None) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w unchanged.
func (None) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// Extension returns "".
func (None) Extension() string { return "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// ByName returns the codec for a manifest compression name.
// Accepted names are "zstd", "gzip" and "none".
func ByName(name string) (Codec, error) {
	switch name {
	case "zstd", "zst":
		return Zstd{}, nil
	case "gzip", "gz":
		return Gzip{}, nil
	case "none", "":
		return None{}, nil
	}
	return nil, fmt.Errorf("codec: unknown compression %q", name)
}

// Name returns the manifest name of c.
func Name(c Codec) string {
	switch c.Extension() {
	case "zst":
		return "zstd"
	case "gz":
		return "gzip"
	}
	return "none"
}

// ForPath picks a codec from a file name such as "games.pgn.zst".
func ForPath(path string) Codec {
	switch strings.TrimPrefix(filepath.Ext(path), ".") {
	case "zst":
		return Zstd{}
	case "gz":
		return Gzip{}
	}
	return None{}
}
