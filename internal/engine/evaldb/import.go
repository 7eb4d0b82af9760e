package evaldb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/engine"
)

// ProgressFunc is called during an import with the lines read so far.
type ProgressFunc func(lines int64)

// progressEvery is how many lines pass between progress callbacks.
const progressEvery = 100_000

// ImportStats summarizes an import.
type ImportStats struct {
	Lines    int64 `json:"lines"`
	Imported int64 `json:"imported"`
	Rejected int64 `json:"rejected"`
}

// Import reads records in the Lichess evaluation export format, one JSON
// object per line, and adds them to w. Lines that do not decode or whose
// FEN is not a legal position are counted as rejected and skipped.
func (w *Writer) Import(ctx context.Context, r io.Reader, progress ProgressFunc) (ImportStats, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)

	var st ImportStats
	for scanner.Scan() {
		if st.Lines%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return st, err
			}
		}
		st.Lines++
		if st.Lines%progressEvery == 0 && progress != nil {
			progress(st.Lines)
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			st.Rejected++
			continue
		}
		pos, err := positionFromFEN(rec.FEN)
		if err != nil {
			w.logger.Debug("rejected record", zap.String("fen", rec.FEN), zap.Error(err))
			st.Rejected++
			continue
		}
		if _, ok := rec.deepest(); !ok {
			st.Rejected++
			continue
		}
		rec.FEN = engine.PositionKey(pos)
		w.add(pos, rec)
		st.Imported++
	}
	if err := scanner.Err(); err != nil {
		return st, fmt.Errorf("reading records: %w", err)
	}
	if progress != nil {
		progress(st.Lines)
	}
	return st, nil
}

// positionFromFEN parses a FEN that may omit the move counters.
func positionFromFEN(fen string) (*chess.Position, error) {
	if len(strings.Fields(fen)) == 4 {
		fen += " 0 1"
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return chess.NewGame(opt).Position(), nil
}
