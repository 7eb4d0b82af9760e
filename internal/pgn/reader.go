// Package pgn reads games for one subject player from PGN archives.
//
// A stream is first split into per-game texts on "[Event " lines and each
// text is then parsed on its own, so one bad game never stops the read.
package pgn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/notnil/chess"

	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/game"
)

// maxLine bounds a single PGN line.
const maxLine = 1024 * 1024

// Reader yields games from a PGN stream.
type Reader struct {
	scanner  *bufio.Scanner
	user     string
	platform string

	pending string // "[Event " line that opened the next game
	index   int
	done    bool
}

// Option configures a Reader.
type Option func(*Reader)

// WithPlatform sets the platform recorded in game keys. Default is "pgn".
func WithPlatform(platform string) Option {
	return func(r *Reader) {
		r.platform = platform
	}
}

// NewReader returns a reader of games played by user.
func NewReader(r io.Reader, user string, opts ...Option) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	rd := &Reader{
		scanner:  scanner,
		user:     user,
		platform: "pgn",
	}
	for _, opt := range opts {
		opt(rd)
	}
	return rd
}

// File is a Reader over a file on disk.
type File struct {
	*Reader
	closers []io.Closer
}

// Open opens a PGN file, decompressing by extension (".zst", ".gz").
func Open(path, user string, opts ...Option) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	dec, err := codec.ForPath(path).Reader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return &File{
		Reader:  NewReader(dec, user, opts...),
		closers: []io.Closer{dec, f},
	}, nil
}

// Close closes the decompressor and the file.
func (f *File) Close() error {
	var errs []error
	for _, c := range f.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Next returns the next game. At the end of the stream it returns io.EOF.
// A game that cannot be parsed or does not involve the subject yields an
// error wrapping game.ErrMalformed; the caller may keep calling Next.
func (r *Reader) Next() (*game.Game, error) {
	if r.done {
		return nil, io.EOF
	}
	text, err := r.nextText()
	if err != nil {
		return nil, err
	}
	r.index++
	return r.parse(text)
}

// nextText collects the lines of the next game.
func (r *Reader) nextText() (string, error) {
	var b strings.Builder
	if r.pending != "" {
		b.WriteString(r.pending)
		b.WriteByte('\n')
		r.pending = ""
	}
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.HasPrefix(line, "[Event ") && strings.TrimSpace(b.String()) != "" {
			r.pending = line
			return b.String(), nil
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if err := r.scanner.Err(); err != nil {
		r.done = true
		return "", fmt.Errorf("reading PGN: %w", err)
	}
	r.done = true
	if strings.TrimSpace(b.String()) == "" {
		return "", io.EOF
	}
	return b.String(), nil
}

func (r *Reader) parse(text string) (*game.Game, error) {
	pgnFunc, err := chess.PGN(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: game %d: %v", game.ErrMalformed, r.index, err)
	}
	cg := chess.NewGame(pgnFunc)
	key := game.Key{
		User:     r.user,
		Platform: r.platform,
		GameID:   gameID(cg, r.index),
	}
	return game.FromChess(cg, key)
}

// gameID prefers an explicit GameId tag, then the last path element of a
// Site URL, then the position of the game in the stream.
func gameID(g *chess.Game, index int) string {
	if tp := g.GetTagPair("GameId"); tp != nil && tp.Value != "" {
		return tp.Value
	}
	if tp := g.GetTagPair("Site"); tp != nil && strings.Contains(tp.Value, "://") {
		site := strings.TrimRight(tp.Value, "/")
		if i := strings.LastIndexByte(site, '/'); i >= 0 && i < len(site)-1 {
			return site[i+1:]
		}
	}
	return "game-" + strconv.Itoa(index)
}
