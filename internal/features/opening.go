package features

import (
	"sync"

	"github.com/notnil/chess"
	"github.com/notnil/chess/opening"
)

// bookECO is parsed once; building it walks the whole ECO table.
var bookECO = sync.OnceValue(func() *opening.BookECO {
	return opening.NewBookECO()
})

type openingMatch struct {
	eco   string
	name  string
	plies int
}

// findOpening returns the deepest ECO entry the moves follow.
func findOpening(moves []*chess.Move) openingMatch {
	o := bookECO().Find(moves)
	if o == nil {
		return openingMatch{}
	}
	return openingMatch{
		eco:   o.Code(),
		name:  o.Title(),
		plies: len(o.Game().Moves()),
	}
}
