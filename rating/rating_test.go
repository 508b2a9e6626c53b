package rating_test

import (
	"context"
	"testing"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/docstore/memstore"
	"github.com/RibbonsAlmark/Relay/rating"
)

func TestUpdateScoreIdempotent(t *testing.T) {
	tags := []rating.Tag{{Label: rating.Label, Score: 1}, {Label: "other", Score: 9}}

	same := rating.UpdateScore(tags, 1)
	if len(same) != 2 || same[0].Score != 1 {
		t.Fatalf("re-applying the same score should be a no-op beyond value, got %v", same)
	}

	replaced := rating.UpdateScore(tags, -1)
	if len(replaced) != 2 || replaced[0].Score != -1 {
		t.Fatalf("applying a different score should replace in place, not duplicate, got %v", replaced)
	}
	if replaced[1].Label != "other" || replaced[1].Score != 9 {
		t.Fatalf("UpdateScore should leave other labels untouched, got %v", replaced)
	}

	if tags[0].Score != 1 {
		t.Fatalf("UpdateScore mutated its input slice")
	}

	fresh := rating.UpdateScore(nil, -1)
	if len(fresh) != 1 || fresh[0].Label != rating.Label || fresh[0].Score != -1 {
		t.Fatalf("UpdateScore on a document with no rating tag yet should append one, got %v", fresh)
	}
}

func TestScoreForLetter(t *testing.T) {
	for _, letter := range []string{rating.LetterGood, rating.LetterBad, rating.LetterSkip} {
		if _, err := rating.ScoreForLetter(letter); err != nil {
			t.Fatalf("ScoreForLetter(%q) = %v, want nil error", letter, err)
		}
	}
	if _, err := rating.ScoreForLetter("x"); err == nil {
		t.Fatalf("ScoreForLetter(\"x\") should fail with InvalidInput")
	}
}

func TestApplyRoundTrips(t *testing.T) {
	d := docstore.NewDoc(map[string]any{"info": map[string]any{"source": "cam0"}})
	rated := rating.Apply(d, 1)
	if got := rating.TagsFromDoc(rated); len(got) != 1 || got[0].Label != rating.Label || got[0].Score != 1 {
		t.Fatalf("Apply: tags = %v", got)
	}
	reRated := rating.Apply(rated, 1)
	if got := rating.TagsFromDoc(reRated); len(got) != 1 {
		t.Fatalf("re-applying the same rating duplicated a tag: %v", got)
	}
	switched := rating.Apply(rated, -1)
	if got := rating.TagsFromDoc(switched); len(got) != 1 || got[0].Score != -1 {
		t.Fatalf("rating with a different letter should replace in place, not add: %v", got)
	}
}

func seed(s *memstore.Store, db, col string, n int) {
	docs := make([]map[string]any, n)
	for i := 0; i < n; i++ {
		docs[i] = map[string]any{
			"info": map[string]any{"source": "cam0", "timestamp": float64(i)},
		}
	}
	s.Seed(db, col, docs)
}

func TestRateFrame(t *testing.T) {
	store := memstore.New()
	seed(store, "db", "col", 3)
	svc := rating.NewService(store)

	ctx := context.Background()
	if err := svc.RateFrame(ctx, "db", "col", 1, 1); err != nil {
		t.Fatalf("RateFrame: %v", err)
	}

	cur, _ := store.Slice(ctx, "db", "col", 1, 1)
	defer cur.Close(ctx)
	if !cur.Next(ctx) {
		t.Fatal("expected a document at index 1")
	}
	if tags := rating.TagsFromDoc(cur.Doc()); len(tags) != 1 || tags[0].Label != rating.Label || tags[0].Score != 1 {
		t.Fatalf("frame 1 tags = %v", tags)
	}

	cur0, _ := store.Slice(ctx, "db", "col", 0, 1)
	defer cur0.Close(ctx)
	cur0.Next(ctx)
	if tags := rating.TagsFromDoc(cur0.Doc()); len(tags) != 0 {
		t.Fatalf("frame 0 should be untouched, got %v", tags)
	}
}

func TestRateFrameNotFound(t *testing.T) {
	store := memstore.New()
	seed(store, "db", "col", 1)
	svc := rating.NewService(store)
	if err := svc.RateFrame(context.Background(), "db", "col", 5, 1); err == nil {
		t.Fatal("expected NotFound for an out-of-range frame index")
	}
}

func TestRateRange(t *testing.T) {
	store := memstore.New()
	seed(store, "db", "col", 10)
	svc := rating.NewService(store)
	ctx := context.Background()

	if err := svc.RateRange(ctx, "db", "col", 2, 5, -1); err != nil {
		t.Fatalf("RateRange: %v", err)
	}

	cur, _ := store.Iter(ctx, "db", "col")
	defer cur.Close(ctx)
	var rated int
	for cur.Next(ctx) {
		d := cur.Doc()
		ts, _ := d.Timestamp()
		tags := rating.TagsFromDoc(d)
		if ts >= 2 && ts <= 5 {
			if len(tags) != 1 {
				t.Fatalf("frame ts=%v should be rated, tags=%v", ts, tags)
			}
			rated++
		} else if len(tags) != 0 {
			t.Fatalf("frame ts=%v should be untouched, tags=%v", ts, tags)
		}
	}
	if rated != 4 {
		t.Fatalf("rated %d frames, want 4 (ts in [2,5])", rated)
	}
}

func TestRateCollection(t *testing.T) {
	store := memstore.New()
	seed(store, "db", "col", 250) // exceeds one batch, exercises chunking
	svc := rating.NewService(store)
	ctx := context.Background()

	if err := svc.RateCollection(ctx, "db", "col", 1); err != nil {
		t.Fatalf("RateCollection: %v", err)
	}

	cur, _ := store.Iter(ctx, "db", "col")
	defer cur.Close(ctx)
	n := 0
	for cur.Next(ctx) {
		if tags := rating.TagsFromDoc(cur.Doc()); len(tags) != 1 {
			t.Fatalf("doc %d not rated: %v", n, tags)
		}
		n++
	}
	if n != 250 {
		t.Fatalf("scanned %d docs, want 250", n)
	}
}

func TestRateSource(t *testing.T) {
	store := memstore.New()
	store.Seed("db", "col", []map[string]any{
		{"info": map[string]any{"source": "cam0"}},
		{"info": map[string]any{"source": "cam1"}},
	})
	svc := rating.NewService(store)
	ctx := context.Background()

	if err := svc.RateSource(ctx, "db", "col", "cam0", 1); err != nil {
		t.Fatalf("RateSource: %v", err)
	}

	cur, _ := store.Iter(ctx, "db", "col")
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		d := cur.Doc()
		tags := rating.TagsFromDoc(d)
		if d.Source() == "cam0" && len(tags) != 1 {
			t.Fatalf("cam0 doc should be rated, tags=%v", tags)
		}
		if d.Source() == "cam1" && len(tags) != 0 {
			t.Fatalf("cam1 doc should be untouched, tags=%v", tags)
		}
	}
}
