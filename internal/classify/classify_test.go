package classify

import (
	"encoding/json"
	"testing"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/engine"
)

func TestClassify_Boundaries(t *testing.T) {
	tests := []struct {
		loss int
		want Quality
	}{
		{-30, Best},
		{0, Best},
		{1, Good},
		{50, Good},
		{51, Inaccuracy},
		{100, Inaccuracy},
		{101, Mistake},
		{200, Mistake},
		{201, Blunder},
		{5000, Blunder},
	}
	for _, tt := range tests {
		if got := Classify(tt.loss); got != tt.want {
			t.Errorf("Classify(%d) = %v, want %v", tt.loss, got, tt.want)
		}
	}
}

func TestClassify_Monotonic(t *testing.T) {
	prev := Classify(0)
	for loss := 1; loss <= 1000; loss++ {
		q := Classify(loss)
		if q < prev {
			t.Fatalf("Classify(%d) = %v, better than Classify(%d) = %v", loss, q, loss-1, prev)
		}
		prev = q
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("DefaultThresholds().Validate() error = %v", err)
	}
	if err := (Thresholds{Good: 50, Inaccuracy: 50, Mistake: 200}).Validate(); err == nil {
		t.Error("Validate() with equal bounds should fail")
	}
}

func TestLossBetween(t *testing.T) {
	w, b := chess.White, chess.Black
	tests := []struct {
		name   string
		best   engine.Evaluation
		played engine.Evaluation
		mover  chess.Color
		want   Loss
	}{
		{"finite", engine.Centipawns(80, w), engine.Centipawns(40, b), w, Loss{Finite, 120}},
		{"gain clamps to zero", engine.Centipawns(10, w), engine.Centipawns(-60, b), w, Loss{Finite, 0}},
		{"black mover", engine.Centipawns(30, b), engine.Centipawns(170, w), b, Loss{Finite, 200}},
		{"missed mate", engine.MateIn(2, w), engine.Centipawns(-900, b), w, Loss{Kind: MissedMate}},
		{"allowed mate", engine.Centipawns(20, w), engine.MateIn(3, b), w, Loss{Kind: AllowedMate}},
		{"longer mate still mates", engine.MateIn(2, w), engine.MateIn(-4, b), w, Loss{Finite, 0}},
		{"already lost", engine.MateIn(-3, w), engine.MateIn(2, b), w, Loss{Finite, 0}},
		{"delivered mate", engine.MateIn(1, w), engine.Checkmated(b), w, Loss{Finite, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LossBetween(tt.best, tt.played, tt.mover); got != tt.want {
				t.Errorf("LossBetween() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLossBetween_ColorSymmetry(t *testing.T) {
	for _, cp := range []int{-300, -50, 0, 75, 400} {
		for _, after := range []int{-500, -20, 0, 60, 300} {
			white := LossBetween(engine.Centipawns(cp, chess.White), engine.Centipawns(after, chess.Black), chess.White)
			black := LossBetween(engine.Centipawns(cp, chess.Black), engine.Centipawns(after, chess.White), chess.Black)
			if white != black {
				t.Errorf("loss(%d, %d) white = %+v, black = %+v", cp, after, white, black)
			}
		}
	}
}

func TestClassifyLoss(t *testing.T) {
	tests := []struct {
		loss Loss
		want Quality
	}{
		{Loss{Finite, 0}, Best},
		{Loss{Finite, 150}, Mistake},
		{Loss{Kind: MissedMate}, Blunder},
		{Loss{Kind: AllowedMate}, Blunder},
	}
	for _, tt := range tests {
		if got := ClassifyLoss(tt.loss); got != tt.want {
			t.Errorf("ClassifyLoss(%+v) = %v, want %v", tt.loss, got, tt.want)
		}
	}
}

func TestIsBrilliant(t *testing.T) {
	w := chess.White
	tests := []struct {
		name      string
		q         Quality
		sacrifice bool
		after     engine.Evaluation
		want      bool
	}{
		{"best sacrifice still winning", Best, true, engine.Centipawns(-150, chess.Black), true},
		{"sacrifice leading to mate", Best, true, engine.MateIn(-3, chess.Black), true},
		{"not a sacrifice", Best, false, engine.Centipawns(-150, chess.Black), false},
		{"not best", Good, true, engine.Centipawns(-150, chess.Black), false},
		{"equal afterwards", Best, true, engine.Centipawns(0, chess.Black), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBrilliant(tt.q, tt.sacrifice, tt.after, w); got != tt.want {
				t.Errorf("IsBrilliant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuality_Text(t *testing.T) {
	data, err := json.Marshal([]Quality{Best, Blunder, Unknown})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `["best","blunder","unknown"]` {
		t.Errorf("Marshal() = %s", data)
	}
	var got []Quality
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(got) != 3 || got[1] != Blunder {
		t.Errorf("Unmarshal() = %v", got)
	}
}

func TestLoss_String(t *testing.T) {
	tests := []struct {
		loss Loss
		want string
	}{
		{Loss{Kind: Finite, Centipawns: 35}, "35cp"},
		{Loss{Kind: Finite}, "0cp"},
		{Loss{Kind: MissedMate}, "missed_mate"},
		{Loss{Kind: AllowedMate}, "allowed_mate"},
	}
	for _, tt := range tests {
		if got := tt.loss.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.loss, got, tt.want)
		}
	}
}
