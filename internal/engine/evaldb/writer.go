package evaldb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/blob"
	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/engine"
)

// Writer collects evaluations and writes them out as a database.
// It is safe for concurrent use.
type Writer struct {
	store       blob.Store
	codec       codec.Codec
	strategy    Strategy
	totalShards int
	source      string
	logger      *zap.Logger

	mu     sync.Mutex
	shards map[int]map[string]Record
}

// NewWriter creates a writer targeting s.
func NewWriter(s blob.Store, opts ...Option) *Writer {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{
		store:       s,
		codec:       cfg.codec,
		strategy:    cfg.strategy,
		totalShards: cfg.totalShards,
		source:      cfg.source,
		logger:      cfg.logger,
		shards:      make(map[int]map[string]Record),
	}
}

// Add records the evaluation of pos. A later result for the same
// position replaces an earlier one only when it was searched deeper.
func (w *Writer) Add(pos *chess.Position, res engine.Result) {
	w.add(pos, recordFrom(pos, res))
}

func (w *Writer) add(pos *chess.Position, rec Record) {
	id := w.strategy.ShardID(pos, w.totalShards)
	next, _ := rec.deepest()

	w.mu.Lock()
	defer w.mu.Unlock()
	shard, ok := w.shards[id]
	if !ok {
		shard = make(map[string]Record)
		w.shards[id] = shard
	}
	if prev, ok := shard[rec.FEN]; ok {
		if best, _ := prev.deepest(); best.Depth >= next.Depth {
			return
		}
	}
	shard[rec.FEN] = rec
}

// Len returns the number of distinct positions collected.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, shard := range w.shards {
		n += len(shard)
	}
	return n
}

// Flush writes every collected shard, sorted by FEN, followed by the
// manifest. Shards already in the store that received no records are
// left unchanged.
func (w *Writer) Flush(ctx context.Context) (*Manifest, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int, 0, len(w.shards))
	for id := range w.shards {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var total int64
	for _, id := range ids {
		n, err := w.writeShard(ctx, id, w.shards[id])
		if err != nil {
			return nil, fmt.Errorf("writing shard %d: %w", id, err)
		}
		total += int64(n)
	}

	m := &Manifest{
		Version:     1,
		TotalShards: w.totalShards,
		Strategy:    w.strategy.Name(),
		RecordCount: total,
		ShardCount:  len(ids),
		BuiltAt:     time.Now().UTC(),
		SourceURL:   w.source,
		Compression: codec.Name(w.codec),
	}
	if err := WriteManifest(ctx, w.store, m); err != nil {
		return nil, err
	}

	w.logger.Info("evaluation database written",
		zap.Int64("records", total),
		zap.Int("shards", len(ids)),
	)
	return m, nil
}

func (w *Writer) writeShard(ctx context.Context, id int, records map[string]Record) (int, error) {
	fens := make([]string, 0, len(records))
	for fen := range records {
		fens = append(fens, fen)
	}
	sort.Strings(fens)

	var buf bytes.Buffer
	enc, err := w.codec.Writer(&buf)
	if err != nil {
		return 0, fmt.Errorf("creating compressor: %w", err)
	}
	for _, fen := range fens {
		line, err := json.Marshal(records[fen])
		if err != nil {
			enc.Close()
			return 0, fmt.Errorf("encoding %s: %w", fen, err)
		}
		line = append(line, '\n')
		if _, err := enc.Write(line); err != nil {
			enc.Close()
			return 0, err
		}
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	if err := w.store.Put(ctx, ShardKey(id, w.codec), buf.Bytes()); err != nil {
		return 0, err
	}
	return len(fens), nil
}

// Recorder wraps an evaluator and adds every successful result to a
// Writer.
type Recorder struct {
	engine.Evaluator
	writer *Writer
}

// Compile-time check that Recorder implements engine.Evaluator.
var _ engine.Evaluator = (*Recorder)(nil)

// NewRecorder returns an evaluator that records ev's results into w.
func NewRecorder(ev engine.Evaluator, w *Writer) *Recorder {
	return &Recorder{Evaluator: ev, writer: w}
}

// Evaluate delegates to the wrapped evaluator and records the result.
func (r *Recorder) Evaluate(ctx context.Context, pos *chess.Position, limits engine.Limits) (engine.Result, error) {
	res, err := r.Evaluator.Evaluate(ctx, pos, limits)
	if err == nil {
		r.writer.Add(pos, res)
	}
	return res, err
}
