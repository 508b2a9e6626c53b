package docstore_test

import (
	"context"
	"testing"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/docstore/memstore"
)

func TestDocAccessors(t *testing.T) {
	d := docstore.NewDoc(map[string]any{
		"info": map[string]any{"source": "cam0", "timestamp": 1.5},
		"camera": []any{
			map[string]any{"name": "left"},
		},
		"tag": []any{"good"},
	})
	if d.Source() != "cam0" {
		t.Fatalf("Source() = %q, want cam0", d.Source())
	}
	ts, ok := d.Timestamp()
	if !ok || ts != 1.5 {
		t.Fatalf("Timestamp() = %v, %v, want 1.5, true", ts, ok)
	}
	if len(d.Cameras()) != 1 {
		t.Fatalf("Cameras() len = %d, want 1", len(d.Cameras()))
	}
	if got := d.Tag(); len(got) != 1 || got[0] != "good" {
		t.Fatalf("Tag() = %v, want [good]", got)
	}

	d2 := d.WithTag([]string{"a", "b"})
	if got := d2.Tag(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("WithTag: Tag() = %v", got)
	}
	if len(d.Tag()) != 1 {
		t.Fatalf("WithTag mutated the original document")
	}
}

func TestMemstoreSliceAndFind(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	docs := make([]map[string]any, 0, 10)
	for i := 0; i < 10; i++ {
		src := "a"
		if i >= 5 {
			src = "b"
		}
		docs = append(docs, map[string]any{"info": map[string]any{"source": src, "idx": float64(i)}})
	}
	s.Seed("db", "col", docs)

	n, err := s.Count(ctx, "db", "col")
	if err != nil || n != 10 {
		t.Fatalf("Count() = %d, %v; want 10, nil", n, err)
	}

	cur, err := s.Slice(ctx, "db", "col", 3, 2)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	defer cur.Close(ctx)
	var got []int
	for cur.Next(ctx) {
		idx, _ := cur.Doc().Info()["idx"].(float64)
		got = append(got, int(idx))
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("Slice(3,2) = %v, want [3 4]", got)
	}

	fcur, err := s.Find(ctx, "db", "col", docstore.Query{"info.source": "b"}, nil, nil, 0, -1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	defer fcur.Close(ctx)
	count := 0
	for fcur.Next(ctx) {
		if fcur.Doc().Source() != "b" {
			t.Fatalf("Find returned a non-matching doc")
		}
		count++
	}
	if count != 5 {
		t.Fatalf("Find(source=b) matched %d docs, want 5", count)
	}
}

func TestMemstoreWriteUpsert(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.Seed("db", "col", []map[string]any{{"info": map[string]any{"source": "a"}}})

	cur, _ := s.Slice(ctx, "db", "col", 0, -1)
	cur.Next(ctx)
	d := cur.Doc()
	cur.Close(ctx)

	updated := d.WithTag([]string{"good"})
	if err := s.Write(ctx, "db", "col", []docstore.Doc{updated}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	cur2, _ := s.Slice(ctx, "db", "col", 0, -1)
	defer cur2.Close(ctx)
	cur2.Next(ctx)
	if got := cur2.Doc().Tag(); len(got) != 1 || got[0] != "good" {
		t.Fatalf("after Write, Tag() = %v, want [good]", got)
	}

	n, _ := s.Count(ctx, "db", "col")
	if n != 1 {
		t.Fatalf("Write upsert created a duplicate: Count() = %d", n)
	}
}

func TestMemstoreListDatabasesAndCollections(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	s.Seed("db1", "colA", []map[string]any{{"info": map[string]any{}}})
	s.Seed("db1", "colB", []map[string]any{{"info": map[string]any{}}})
	s.Seed("db2", "colC", []map[string]any{{"info": map[string]any{}}})

	dbs, err := s.ListDatabases(ctx)
	if err != nil || len(dbs) != 2 {
		t.Fatalf("ListDatabases() = %v, %v", dbs, err)
	}
	cols, err := s.ListCollections(ctx, "db1")
	if err != nil || len(cols) != 2 {
		t.Fatalf("ListCollections(db1) = %v, %v", cols, err)
	}
}
