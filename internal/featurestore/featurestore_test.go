package featurestore_test

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/discochess/persona/internal/codec"
	"github.com/discochess/persona/internal/features"
	"github.com/discochess/persona/internal/featurestore"
	"github.com/discochess/persona/internal/featurestore/memstore"
	"github.com/discochess/persona/internal/game"
)

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	for i, id := range []string{"b", "a", "c"} {
		f := features.GameFeatures{
			Key:        game.Key{User: "carol", Platform: "lichess", GameID: id},
			Outcome:    game.Draw,
			TotalMoves: 10 + i,
			EndgameAt:  features.At(60 + i),
		}
		if err := s.Put(context.Background(), f); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	return s
}

func TestExport_RoundTrip(t *testing.T) {
	for _, c := range []codec.Codec{codec.Zstd{}, codec.Gzip{}, codec.None{}} {
		t.Run(codec.Name(c), func(t *testing.T) {
			s := seed(t)
			var buf bytes.Buffer
			n, err := featurestore.Export(context.Background(), s, featurestore.Query{}, &buf, c)
			if err != nil {
				t.Fatalf("Export() error = %v", err)
			}
			if n != 3 {
				t.Errorf("Export() = %d, want 3", n)
			}

			got, err := featurestore.ReadJSONL(&buf, c)
			if err != nil {
				t.Fatalf("ReadJSONL() error = %v", err)
			}
			want, _ := s.List(context.Background(), featurestore.Query{})
			if !reflect.DeepEqual(got, want) {
				t.Errorf("ReadJSONL() = %+v, want %+v", got, want)
			}
		})
	}
}

func TestExport_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	if _, err := featurestore.Export(context.Background(), seed(t), featurestore.Query{}, &a, codec.None{}); err != nil {
		t.Fatal(err)
	}
	if _, err := featurestore.Export(context.Background(), seed(t), featurestore.Query{}, &b, codec.None{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("two exports of equal stores differ")
	}
}

func TestMemstore(t *testing.T) {
	ctx := context.Background()
	s := seed(t)

	key := game.Key{User: "carol", Platform: "lichess", GameID: "a"}
	f, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	f.TotalMoves = 99
	if err := s.Put(ctx, f); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3 after upsert", s.Len())
	}

	if _, err := s.Get(ctx, game.Key{User: "carol", Platform: "lichess", GameID: "zz"}); !errors.Is(err, featurestore.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	s.Close()
	if _, err := s.List(ctx, featurestore.Query{}); !errors.Is(err, featurestore.ErrClosed) {
		t.Errorf("List() after Close error = %v, want ErrClosed", err)
	}
}

func TestQuery_Matches(t *testing.T) {
	k := game.Key{User: "u", Platform: "p", GameID: "g"}
	tests := []struct {
		q    featurestore.Query
		want bool
	}{
		{featurestore.Query{}, true},
		{featurestore.Query{User: "u"}, true},
		{featurestore.Query{User: "u", Platform: "p"}, true},
		{featurestore.Query{User: "v"}, false},
		{featurestore.Query{Platform: "q"}, false},
	}
	for _, tt := range tests {
		if got := tt.q.Matches(k); got != tt.want {
			t.Errorf("%+v.Matches() = %v, want %v", tt.q, got, tt.want)
		}
	}
}
