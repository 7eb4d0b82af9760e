package evaldb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/engine"
)

// Record is one line of a shard, in the Lichess evaluation export format.
// Scores are from White's point of view.
type Record struct {
	FEN   string `json:"fen"`
	Evals []Eval `json:"evals"`
}

// Eval is one search of a position.
type Eval struct {
	PVs    []PV `json:"pvs"`
	Knodes int  `json:"knodes"`
	Depth  int  `json:"depth"`
}

// PV is a principal variation; exactly one of CP and Mate is set.
type PV struct {
	CP   *int   `json:"cp,omitempty"`
	Mate *int   `json:"mate,omitempty"`
	Line string `json:"line"`
}

// deepest returns the evaluation searched to the greatest depth.
func (r *Record) deepest() (Eval, bool) {
	if len(r.Evals) == 0 {
		return Eval{}, false
	}
	best := r.Evals[0]
	for _, e := range r.Evals[1:] {
		if e.Depth > best.Depth {
			best = e
		}
	}
	return best, len(best.PVs) > 0
}

// result converts the record to an engine result for pos.
func (r *Record) result(pos *chess.Position) (engine.Result, bool) {
	ev, ok := r.deepest()
	if !ok {
		return engine.Result{}, false
	}
	pv := ev.PVs[0]
	stm := pos.Turn()

	res := engine.Result{Depth: ev.Depth}
	switch {
	case pv.Mate != nil:
		res.Eval = engine.FromWhite(engine.Mate, *pv.Mate, stm)
	case pv.CP != nil:
		res.Eval = engine.FromWhite(engine.Centipawn, *pv.CP, stm)
	default:
		return engine.Result{}, false
	}
	res.PV = strings.Fields(pv.Line)
	if len(res.PV) > 0 {
		res.BestMove = res.PV[0]
	}
	return res, true
}

// recordFrom builds a Record from an engine result for pos.
func recordFrom(pos *chess.Position, res engine.Result) Record {
	pv := PV{Line: strings.Join(res.PV, " ")}
	if pv.Line == "" {
		pv.Line = res.BestMove
	}
	if res.Eval.IsMate() {
		moves, whiteWins := res.Eval.MateFor(chess.White)
		if !whiteWins {
			moves = -moves
		}
		pv.Mate = &moves
	} else {
		cp := res.Eval.White()
		pv.CP = &cp
	}
	return Record{
		FEN:   engine.PositionKey(pos),
		Evals: []Eval{{PVs: []PV{pv}, Depth: res.Depth}},
	}
}

// search finds the record for fen in sorted JSONL shard data.
func search(data []byte, fen string) (*Record, error) {
	lines := splitLines(data)
	idx := sort.Search(len(lines), func(i int) bool {
		return extractFEN(lines[i]) >= fen
	})
	if idx >= len(lines) || extractFEN(lines[idx]) != fen {
		return nil, engine.ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(lines[idx], &rec); err != nil {
		return nil, fmt.Errorf("parsing eval record: %w", err)
	}
	return &rec, nil
}

// splitLines splits data into non-empty lines.
func splitLines(data []byte) [][]byte {
	lines := make([][]byte, 0, bytes.Count(data, []byte{'\n'})+1)
	for len(data) > 0 {
		line := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// extractFEN reads the fen field of a JSON line without decoding it.
func extractFEN(line []byte) string {
	const prefix = `"fen":"`
	i := bytes.Index(line, []byte(prefix))
	if i < 0 {
		return ""
	}
	start := i + len(prefix)
	end := bytes.IndexByte(line[start:], '"')
	if end < 0 {
		return ""
	}
	return string(line[start : start+end])
}
