package session

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/relog"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// sourceAggregator is implemented by DocumentSource backends that can
// compute the source catalog aggregation-side; the core falls back to
// scanning the full cache when the store does not implement it
// (spec.md §4.4 step 4). Neither mongostore.Store nor memstore.Store
// implements it, so with those stores the catalog comes from the cache.
type sourceAggregator interface {
	SourceFirstIndex(ctx context.Context, db, col string) (map[string]int64, error)
}

// buildCatalog is the background catalog-builder task (spec §4.4 step
// 4; SPEC_FULL §4 "Source catalog"). It serializes the catalog once
// and caches the bytes; UIPanelProcessor re-emits them at frame 0
// instead of re-serializing per frame (resolves the json.dumps
// self-assignment Open Question, see DESIGN.md).
func (s *Session) buildCatalog(ctx context.Context) {
	var catalog map[string]int64
	var err error

	if agg, ok := s.store.(sourceAggregator); ok {
		catalog, err = agg.SourceFirstIndex(ctx, s.Dataset, s.Collection)
		if err != nil {
			relog.Warningf("session %s: aggregation-side catalog failed, falling back: %v", s.UUID, err)
			catalog = nil
		}
	}

	if catalog == nil {
		full, ok := s.WaitFullFrames(ctx)
		if !ok {
			return
		}
		catalog = catalogFromDocs(full)
	}

	encoded, err := jsonAPI.Marshal(catalog)
	if err != nil {
		relog.Warningf("session %s: catalog marshal failed: %v", s.UUID, err)
		return
	}
	s.catalogMu.Lock()
	s.catalog = encoded
	s.catalogMu.Unlock()
}

func catalogFromDocs(docs []docstore.Doc) map[string]int64 {
	out := make(map[string]int64)
	for idx, d := range docs {
		src := d.Source()
		if src == "" {
			continue
		}
		if _, seen := out[src]; !seen {
			out[src] = int64(idx)
		}
	}
	return out
}

func (s *Session) catalogBytes() []byte {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()
	return s.catalog
}
