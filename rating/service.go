package rating

import (
	"context"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/relog"
	"github.com/RibbonsAlmark/Relay/rerr"
)

// batchSize matches the original's logic/tagger.py batch_size
// constant: rating mutations are chunked into all-or-nothing writes
// of this many documents (spec.md §7).
const batchSize = 100

// Service rates documents in one collection by frame index, by a
// numeric timestamp range, by source name, or across the whole
// collection (SPEC_FULL §8 "Rating services").
type Service struct {
	Store docstore.DocumentSource
}

func NewService(store docstore.DocumentSource) *Service {
	return &Service{Store: store}
}

// RateFrame rates the single document at frameIdx (spec §6
// quick-rate links embedded in the UI panel).
func (s *Service) RateFrame(ctx context.Context, db, col string, frameIdx int64, score int) error {
	if frameIdx < 0 {
		return rerr.NewInvalidInput("frame index %d out of range", frameIdx)
	}
	cur, err := s.Store.Slice(ctx, db, col, frameIdx, 1)
	if err != nil {
		return rerr.NewExternalFault("rating.RateFrame.Slice", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return rerr.NewExternalFault("rating.RateFrame.Next", err)
		}
		return rerr.NewNotFound("frame %d", frameIdx)
	}
	rated := Apply(cur.Doc(), score)
	if err := s.Store.Write(ctx, db, col, []docstore.Doc{rated}); err != nil {
		return rerr.NewExternalFault("rating.RateFrame.Write", err)
	}
	return nil
}

// RateRange rates every document whose info.timestamp falls in
// [tsStart, tsEnd], inclusive, via DocumentSource.Find in chunks of
// batchSize (original's range-rate by numeric timestamp bounds).
func (s *Service) RateRange(ctx context.Context, db, col string, tsStart, tsEnd float64, score int) error {
	query := docstore.Query{
		"info.timestamp": map[string]any{"$gte": tsStart, "$lte": tsEnd},
	}
	return s.rateQuery(ctx, db, col, query, score)
}

// RateSource rates every document whose info.source equals source
// (original's rate_by_source).
func (s *Service) RateSource(ctx context.Context, db, col, source string, score int) error {
	query := docstore.Query{"info.source": source}
	return s.rateQuery(ctx, db, col, query, score)
}

// RateCollection rates every document in db.col.
func (s *Service) RateCollection(ctx context.Context, db, col string, score int) error {
	cur, err := s.Store.Iter(ctx, db, col)
	if err != nil {
		return rerr.NewExternalFault("rating.RateCollection.Iter", err)
	}
	return s.rateCursor(ctx, db, col, cur, score)
}

// rateQuery pages through Find results in batches of batchSize,
// rating and writing each batch atomically (spec §7, "all-or-nothing
// per batch"). A partial failure aborts the call with ExternalFault
// without attempting further batches.
func (s *Service) rateQuery(ctx context.Context, db, col string, query docstore.Query, score int) error {
	var skip int64
	rated := 0
	for {
		cur, err := s.Store.Find(ctx, db, col, query, nil, nil, skip, batchSize)
		if err != nil {
			return rerr.NewExternalFault("rating.rateQuery.Find", err)
		}
		batch, n, ferr := drainBatch(ctx, cur, score)
		cur.Close(ctx)
		if ferr != nil {
			return ferr
		}
		if n == 0 {
			break
		}
		if err := s.Store.Write(ctx, db, col, batch); err != nil {
			relog.Warningf("rating: batch write failed at skip=%d: %v", skip, err)
			return rerr.NewExternalFault("rating.rateQuery.Write", err)
		}
		rated += n
		skip += int64(n)
		if n < batchSize {
			break
		}
	}
	if rated == 0 {
		relog.Warningf("rating: query over %s.%s matched no documents", db, col)
	}
	return nil
}

// rateCursor drains cur in batches of batchSize, rating and writing
// each batch atomically.
func (s *Service) rateCursor(ctx context.Context, db, col string, cur docstore.Cursor, score int) error {
	defer cur.Close(ctx)
	var batch []docstore.Doc
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.Store.Write(ctx, db, col, batch); err != nil {
			relog.Warningf("rating: whole-collection batch write failed: %v", err)
			return rerr.NewExternalFault("rating.RateCollection.Write", err)
		}
		batch = batch[:0]
		return nil
	}
	for cur.Next(ctx) {
		batch = append(batch, Apply(cur.Doc(), score))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := cur.Err(); err != nil {
		return rerr.NewExternalFault("rating.RateCollection.Next", err)
	}
	return flush()
}

func drainBatch(ctx context.Context, cur docstore.Cursor, score int) ([]docstore.Doc, int, error) {
	var out []docstore.Doc
	for cur.Next(ctx) {
		out = append(out, Apply(cur.Doc(), score))
	}
	if err := cur.Err(); err != nil {
		return nil, 0, rerr.NewExternalFault("rating.drainBatch", err)
	}
	return out, len(out), nil
}
