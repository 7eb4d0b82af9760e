package features

import "github.com/notnil/chess"

// pieceValues in pawns, indexed by chess.PieceType.
var pieceValues = [...]int{
	chess.Queen:  9,
	chess.Rook:   5,
	chess.Bishop: 3,
	chess.Knight: 3,
	chess.Pawn:   1,
}

func value(pt chess.PieceType) int {
	if int(pt) < len(pieceValues) {
		return pieceValues[pt]
	}
	return 0
}

func colorIndex(c chess.Color) int {
	if c == chess.Black {
		return 1
	}
	return 0
}

// tally counts material per side.
type tally struct {
	material [2]int // all pieces, in pawns
	nonPawn  [2]int // pieces other than pawns and king, in pawns
	queens   [2]int
	rooks    [2]int
	minors   [2]int
	king     [2]chess.Square
}

func tallyOf(b *chess.Board) tally {
	var t tally
	for sq, p := range b.SquareMap() {
		i := colorIndex(p.Color())
		v := value(p.Type())
		t.material[i] += v
		switch p.Type() {
		case chess.King:
			t.king[i] = sq
		case chess.Pawn:
		case chess.Queen:
			t.queens[i]++
			t.nonPawn[i] += v
		case chess.Rook:
			t.rooks[i]++
			t.nonPawn[i] += v
		default:
			t.minors[i]++
			t.nonPawn[i] += v
		}
	}
	return t
}

// balance returns c's material minus the opponent's.
func (t tally) balance(c chess.Color) int {
	i := colorIndex(c)
	return t.material[i] - t.material[1-i]
}

func (t tally) queenless() bool {
	return t.queens[0] == 0 && t.queens[1] == 0
}

// endgame holds when no queens remain and each side has at most a rook's
// worth of pieces besides pawns.
func (t tally) endgame() bool {
	return t.queenless() && t.nonPawn[0] <= 5 && t.nonPawn[1] <= 5
}

func (t tally) rookEndgame() bool {
	return t.endgame() &&
		t.rooks[0] == 1 && t.rooks[1] == 1 &&
		t.minors[0] == 0 && t.minors[1] == 0
}

// bothHavePieces reports whether each side still has a piece other than
// pawns and king.
func (t tally) bothHavePieces() bool {
	return t.nonPawn[0] > 0 && t.nonPawn[1] > 0
}

var (
	knightSteps = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookDirs    = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopDirs  = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func square(file, rank int) (chess.Square, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return chess.Square(rank*8 + file), true
}

// attacks returns the squares attacked by p standing on from.
func attacks(b *chess.Board, from chess.Square, p chess.Piece) []chess.Square {
	f, r := int(from.File()), int(from.Rank())
	var out []chess.Square

	step := func(steps [][2]int) {
		for _, s := range steps {
			if sq, ok := square(f+s[0], r+s[1]); ok {
				out = append(out, sq)
			}
		}
	}
	slide := func(dirs [][2]int) {
		for _, d := range dirs {
			for k := 1; ; k++ {
				sq, ok := square(f+k*d[0], r+k*d[1])
				if !ok {
					break
				}
				out = append(out, sq)
				if b.Piece(sq) != chess.NoPiece {
					break
				}
			}
		}
	}

	switch p.Type() {
	case chess.Pawn:
		dir := 1
		if p.Color() == chess.Black {
			dir = -1
		}
		step([][2]int{{-1, dir}, {1, dir}})
	case chess.Knight:
		step(knightSteps)
	case chess.King:
		step(kingSteps)
	case chess.Bishop:
		slide(bishopDirs)
	case chess.Rook:
		slide(rookDirs)
	case chess.Queen:
		slide(bishopDirs)
		slide(rookDirs)
	}
	return out
}

// attackersOf counts c's pieces attacking target.
func attackersOf(b *chess.Board, target chess.Square, c chess.Color) int {
	n := 0
	for sq, p := range b.SquareMap() {
		if p.Color() != c {
			continue
		}
		for _, a := range attacks(b, sq, p) {
			if a == target {
				n++
				break
			}
		}
	}
	return n
}

// threatens reports whether the piece on from attacks an enemy piece,
// other than the king, worth strictly more than itself.
func threatens(b *chess.Board, from chess.Square) bool {
	p := b.Piece(from)
	if p == chess.NoPiece {
		return false
	}
	own := value(p.Type())
	for _, sq := range attacks(b, from, p) {
		target := b.Piece(sq)
		if target == chess.NoPiece || target.Color() == p.Color() || target.Type() == chess.King {
			continue
		}
		if value(target.Type()) > own {
			return true
		}
	}
	return false
}

func chebyshev(a, b chess.Square) int {
	df := int(a.File()) - int(b.File())
	dr := int(a.Rank()) - int(b.Rank())
	return max(abs(df), abs(dr))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
