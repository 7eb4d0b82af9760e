package features

import (
	"fmt"

	"github.com/notnil/chess"
	"go.uber.org/zap"

	"github.com/discochess/persona/internal/classify"
	"github.com/discochess/persona/internal/engine"
	"github.com/discochess/persona/internal/game"
)

// Extractor computes GameFeatures. It holds no per-game state and is safe
// for concurrent use.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithConfig replaces the default heuristics.
func WithConfig(cfg Config) Option {
	return func(x *Extractor) {
		x.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Extractor) {
		x.logger = l
	}
}

// NewExtractor creates an extractor.
func NewExtractor(opts ...Option) (*Extractor, error) {
	x := &Extractor{
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	if err := x.cfg.Validate(); err != nil {
		return nil, err
	}
	return x, nil
}

// Config returns the heuristics in use.
func (x *Extractor) Config() Config {
	return x.cfg
}

// Extract walks g once, pairing each ply with evals[i]. It fails only with
// game.ErrMalformed, when the moves cannot be replayed from the recorded
// positions or the number of evaluations differs from the number of
// plies. Features that a short game never reaches stay unset.
func (x *Extractor) Extract(g *game.Game, evals []PlyEval) (Result, error) {
	if err := g.Validate(); err != nil {
		return Result{}, err
	}
	moves := g.Chess.Moves()
	if len(evals) != len(moves) {
		return Result{}, fmt.Errorf("%w: %s has %d plies but %d evaluations",
			game.ErrMalformed, g.Key, len(moves), len(evals))
	}

	p := newPass(x.cfg, g)
	for i, m := range moves {
		if err := p.step(i, m, evals[i]); err != nil {
			return Result{}, err
		}
	}
	p.finish()

	x.logger.Debug("features extracted",
		zap.String("game", g.Key.String()),
		zap.Int("plies", len(moves)),
		zap.Int("sacrifices", p.f.SacEvents),
	)
	return Result{Features: p.f, Moves: p.records}, nil
}

// pendingSac is a subject move whose material loss awaits confirmation.
type pendingSac struct {
	index    int // into records
	base     int // subject balance before the move
	deadline int // last ply of the window
}

// capture is a recent capture of a piece other than a pawn.
type capture struct {
	ply    int
	square chess.Square
	by     chess.Color
}

type pass struct {
	cfg        Config
	g          *game.Game
	subject    chess.Color
	openingPly int
	positions  []*chess.Position

	f       GameFeatures
	records []MoveRecord

	balances   []int // subject balance after each ply; index 0 is the start
	pending    []pendingSac
	captures   []capture
	developed  map[chess.Square]bool
	minorsOut  int // minors moved off their home squares, at any ply
	seen       map[string]int
	castleWing [2]chess.MoveTag
	firstCheck chess.Color

	streak        int
	endgameStreak int
}

func newPass(cfg Config, g *game.Game) *pass {
	positions := g.Chess.Positions()
	p := &pass{
		cfg:        cfg,
		g:          g,
		subject:    g.Subject,
		openingPly: cfg.OpeningPly,
		positions:  positions,
		records:    make([]MoveRecord, 0, len(positions)-1),
		balances:   []int{tallyOf(positions[0].Board()).balance(g.Subject)},
		developed:  make(map[chess.Square]bool),
		seen:       map[string]int{engine.PositionKey(positions[0]): 1},
		firstCheck: chess.NoColor,
	}
	p.f = GameFeatures{
		Key:        g.Key,
		Subject:    colorName(g.Subject),
		Outcome:    g.Outcome,
		OpeningPly: p.openingPly,
		TotalPlies: len(positions) - 1,

		QuietStreakLength: cfg.QuietStreakLength,
	}
	return p
}

func (p *pass) step(i int, m *chess.Move, ev PlyEval) error {
	ply := i + 1
	before, after := p.positions[i], p.positions[i+1]
	mover := before.Turn()

	piece := before.Board().Piece(m.S1())
	if piece == chess.NoPiece || piece.Color() != mover {
		return fmt.Errorf("%w: %s ply %d moves no %s piece from %s",
			game.ErrMalformed, p.g.Key, ply, colorName(mover), m.S1())
	}

	board := after.Board()
	t := tallyOf(board)
	rec := MoveRecord{
		Ply:     ply,
		Mover:   mover,
		SAN:     chess.AlgebraicNotation{}.Encode(before, m),
		UCI:     m.String(),
		Piece:   piece.Type(),
		Status:  ev.Status,
		Capture: m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
		Check:   m.HasTag(chess.Check),
		Castle:  m.HasTag(chess.KingSideCastle) || m.HasTag(chess.QueenSideCastle),
	}
	if rec.Check {
		rec.DoubleCheck = attackersOf(board, t.king[1-colorIndex(mover)], mover) >= 2
	}
	if !rec.Castle {
		rec.Threat = threatens(board, m.S2())
	}
	p.rate(&rec, ev, after)

	p.records = append(p.records, rec)
	p.balances = append(p.balances, t.balance(p.subject))

	p.trackBoard(ply, t, after)
	p.trackCastle(ply, m, mover)
	p.trackTrades(ply, m, before, mover)
	if mover == p.subject {
		p.trackSubjectMove(ply, &p.records[i], m, piece, t)
	} else if rec.Check && p.firstCheck == chess.NoColor {
		p.firstCheck = mover
	}
	p.trackSacrifices(ply, mover)
	return nil
}

// rate sets the evaluation fields, loss and label of rec.
func (p *pass) rate(rec *MoveRecord, ev PlyEval, after *chess.Position) {
	rec.Before = ev.Best.Eval
	rec.BestMove = ev.Best.BestMove
	rec.After = ev.Played

	switch {
	case ev.Status == StatusTerminal && after.Status() == chess.Checkmate:
		rec.Quality = classify.Best
	case ev.Status == StatusForced:
		rec.Quality = classify.Best
	case ev.Status.Rated() && ev.HasPlayed:
		if rec.BestMove == rec.UCI {
			rec.Quality = classify.Best
			break
		}
		rec.Loss = classify.LossBetween(ev.Best.Eval, ev.Played, rec.Mover)
		rec.Quality = p.cfg.Thresholds.ClassifyLoss(rec.Loss)
	default:
		rec.Quality = classify.Unknown
	}
}

func (p *pass) trackBoard(ply int, t tally, after *chess.Position) {
	key := engine.PositionKey(after)
	p.seen[key]++
	if p.seen[key] >= 3 {
		p.f.Repetition = true
	}

	if t.queenless() && !p.f.QueenlessAt.IsSet() {
		p.f.QueenlessAt = At(ply)
		p.f.Queenless = true
	}
	if t.endgame() && !p.f.EndgameAt.IsSet() {
		p.f.EndgameAt = At(ply)
		p.f.EndgameReach = true
	}
	if t.rookEndgame() {
		p.f.RookEndgames = 1
	}
}

func (p *pass) trackCastle(ply int, m *chess.Move, mover chess.Color) {
	var wing chess.MoveTag
	switch {
	case m.HasTag(chess.KingSideCastle):
		wing = chess.KingSideCastle
	case m.HasTag(chess.QueenSideCastle):
		wing = chess.QueenSideCastle
	default:
		return
	}
	p.castleWing[colorIndex(mover)] = wing
	if mover == p.subject && ply <= p.cfg.CastleWindowPlies {
		p.f.CastleMove = At(ply)
		p.f.CastledByMove10 = ply <= 20
	}
}

func (p *pass) trackTrades(ply int, m *chess.Move, before *chess.Position, mover chess.Color) {
	if !m.HasTag(chess.Capture) {
		return
	}
	sq := m.S2()
	kept := p.captures[:0]
	traded := false
	for _, c := range p.captures {
		switch {
		case ply-c.ply > p.cfg.TradeWindowPlies:
			continue
		case !traded && c.square == sq && c.by != mover:
			traded = true
			if ply <= p.openingPly {
				p.f.PieceTradesEarly++
			}
			continue
		}
		kept = append(kept, c)
	}
	p.captures = kept

	taken := before.Board().Piece(sq)
	if taken != chess.NoPiece && taken.Type() != chess.Pawn {
		p.captures = append(p.captures, capture{ply: ply, square: sq, by: mover})
	}
}

func (p *pass) trackSubjectMove(ply int, rec *MoveRecord, m *chess.Move, piece chess.Piece, t tally) {
	f := &p.f
	f.TotalMoves++

	if rec.Status.Rated() {
		f.RatedMoves++
		f.Quality.add(rec.Quality)
		f.Quality.TotalLoss += rec.Loss.Centipawns
		switch rec.Loss.Kind {
		case classify.MissedMate:
			f.Quality.MissedMates++
		case classify.AllowedMate:
			f.Quality.AllowedMates++
		}
		if rec.Forcing() {
			f.ForcingMoves++
		}
		if rec.Quiet() {
			f.QuietMoves++
		}
		p.trackStreaks(rec.Quiet(), f.EndgameAt.Within(ply-1))
	} else if rec.Status.Degraded() {
		f.Quality.Unknown++
	}

	if rec.Capture {
		f.Captures++
	}
	if rec.Check {
		f.ChecksGiven++
		if p.firstCheck == chess.NoColor {
			p.firstCheck = p.subject
		}
	}
	if rec.DoubleCheck {
		f.DoubleChecks++
	}
	if rec.Threat {
		f.ThreatMoves++
	}

	if piece.Type() != chess.King && t.bothHavePieces() &&
		chebyshev(m.S2(), t.king[1-colorIndex(p.subject)]) <= p.cfg.KingZoneRadius {
		f.KingAttackMoves++
	}

	if piece.Type() == chess.Queen && ply < p.cfg.EarlyQueenPlies && !f.EarlyQueen.IsSet() && p.minorsOut < 4 {
		f.EarlyQueen = At(ply)
	}
	if piece.Type() == chess.Pawn || piece.Type() == chess.King || !onHomeSquare(piece, m.S1()) || p.developed[m.S1()] {
		return
	}
	p.developed[m.S1()] = true
	minor := piece.Type() == chess.Knight || piece.Type() == chess.Bishop
	if minor {
		p.minorsOut++
	}
	if ply <= p.openingPly {
		f.NonPawnDevelopments++
		if minor {
			f.MinorDevelopments++
		}
	}
}

// trackStreaks counts maximal runs of quiet rated subject moves, overall
// and inside the endgame. Unrated moves neither extend nor break a run.
func (p *pass) trackStreaks(quiet, inEndgame bool) {
	n := p.cfg.QuietStreakLength
	if quiet {
		p.streak++
		if p.streak == n {
			p.f.QuietMoveStreaks++
		}
	} else {
		p.streak = 0
	}
	if quiet && inEndgame {
		p.endgameStreak++
		if p.endgameStreak == n {
			p.f.EndgameQuietStreaks++
		}
	} else {
		p.endgameStreak = 0
	}
}

// trackSacrifices opens, cancels and confirms sacrifice candidates. A
// subject move opens a candidate once the opponent's reply shows the net
// material drop; the candidate is confirmed when the window closes with
// the material still down and no evaluation below the floor.
func (p *pass) trackSacrifices(ply int, mover chess.Color) {
	bal := p.balances[ply]
	kept := p.pending[:0]
	for _, s := range p.pending {
		if s.base-bal < p.cfg.SacrificeMaterial || p.belowFloor(ply-1) {
			continue
		}
		if ply >= s.deadline {
			p.confirm(s)
			continue
		}
		kept = append(kept, s)
	}
	p.pending = kept

	if mover == p.subject || ply < 2 || p.records[ply-2].Mover != p.subject {
		return
	}
	s := pendingSac{
		index:    ply - 2,
		base:     p.balances[ply-2],
		deadline: ply - 1 + p.cfg.SacrificeWindowPlies,
	}
	if s.base-bal < p.cfg.SacrificeMaterial || p.belowFloor(s.index) || p.belowFloor(ply-1) {
		return
	}
	if ply >= s.deadline {
		p.confirm(s)
		return
	}
	p.pending = append(p.pending, s)
}

// belowFloor reports whether the evaluation after records[i] is known
// and worse for the subject than the configured floor.
func (p *pass) belowFloor(i int) bool {
	rec := &p.records[i]
	if !rec.Status.Rated() && rec.Status != StatusForced {
		return false
	}
	e := rec.After
	if e.IsMate() {
		return e.LosingMateFor(p.subject)
	}
	return e.CentipawnsFor(p.subject) < p.cfg.SacrificeEvalFloor
}

func (p *pass) confirm(s pendingSac) {
	rec := &p.records[s.index]
	rec.Sacrifice = true
	p.f.SacEvents++
	if rec.Status.Rated() && classify.IsBrilliant(rec.Quality, true, rec.After, p.subject) {
		rec.Brilliant = true
		p.f.Quality.Brilliant++
	}
}

func (p *pass) finish() {
	for _, s := range p.pending {
		p.confirm(s)
	}
	p.pending = nil

	f := &p.f
	if f.RatedMoves > 0 {
		f.ForcingRate = float64(f.ForcingMoves) / float64(f.RatedMoves)
		f.QuietRate = float64(f.QuietMoves) / float64(f.RatedMoves)
	}
	f.LongGame = f.TotalPlies >= p.cfg.LongGamePlies
	f.FirstToGiveCheck = p.firstCheck == p.subject

	w, b := p.castleWing[0], p.castleWing[1]
	f.OppositeCastle = w != 0 && b != 0 && w != b

	moves := p.g.Chess.Moves()
	if m := findOpening(moves); m.eco != "" {
		f.ECO, f.Opening, f.BookPlies = m.eco, m.name, m.plies
	}
}

// onHomeSquare reports whether sq is a starting square of piece.
func onHomeSquare(piece chess.Piece, sq chess.Square) bool {
	rank := 0
	if piece.Color() == chess.Black {
		rank = 7
	}
	if int(sq.Rank()) != rank {
		return false
	}
	switch file := int(sq.File()); piece.Type() {
	case chess.Rook:
		return file == 0 || file == 7
	case chess.Knight:
		return file == 1 || file == 6
	case chess.Bishop:
		return file == 2 || file == 5
	case chess.Queen:
		return file == 3
	}
	return false
}

func colorName(c chess.Color) string {
	switch c {
	case chess.White:
		return "white"
	case chess.Black:
		return "black"
	}
	return "none"
}
