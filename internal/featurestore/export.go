package featurestore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/features"
)

// Export writes the records selected by q to w as JSON lines, compressed
// with c, and returns the number written.
func Export(ctx context.Context, s Store, q Query, w io.Writer, c codec.Codec) (n int, err error) {
	fs, err := s.List(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("featurestore: export: %w", err)
	}

	cw, err := c.Writer(w)
	if err != nil {
		return 0, fmt.Errorf("featurestore: export: %w", err)
	}
	defer func() {
		if cerr := cw.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("featurestore: export: %w", cerr)
		}
	}()

	bw := bufio.NewWriter(cw)
	enc := json.NewEncoder(bw)
	for i := range fs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := enc.Encode(&fs[i]); err != nil {
			return n, fmt.Errorf("featurestore: export %s: %w", fs[i].Key, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("featurestore: export: %w", err)
	}
	return n, nil
}

// ReadJSONL decodes records written by Export.
func ReadJSONL(r io.Reader, c codec.Codec) ([]features.GameFeatures, error) {
	cr, err := c.Reader(r)
	if err != nil {
		return nil, fmt.Errorf("featurestore: import: %w", err)
	}
	defer cr.Close()

	var out []features.GameFeatures
	dec := json.NewDecoder(cr)
	for {
		var f features.GameFeatures
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("featurestore: import record %d: %w", len(out)+1, err)
		}
		out = append(out, f)
	}
}
