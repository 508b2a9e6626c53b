// Package rating implements the tag-list mutation logic SPEC_FULL §8
// calls out as a supplemented feature: an idempotent rating update
// (update_rating/update_score_in_tags) plus the range/source/whole-
// collection rating services built on top of it. Grounded on
// original_source's logic/tagger.py and service/rating_service.py;
// spec.md §1 names "the rating/tag mutation logic" as an out-of-scope
// external collaborator, but SPEC_FULL §8 brings its concrete shape
// in-scope as a supplemented feature from original_source.
/*
 * Copyright (c) 2026, RibbonsAlmark. All rights reserved.
 */
package rating

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/rerr"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Tag is one rating entry attached to a document. A document carries
// at most one Tag per Label; Score is an integer in the style of the
// original's three-way good/bad/skip rating.
type Tag struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// Label names the single rating dimension this system tracks (the
// original's "rating:" namespace prefix in tagger.py). A document
// carries at most one Tag with this Label; a new quick-rate call
// replaces its Score rather than appending a sibling tag under a
// different label per letter.
const Label = "rating"

// Letter scores, matching the links UIPanelProcessor emits
// (/rate/{session}/{frame}/g|b|s) and the original's quick_rate three-way
// shorthand.
const (
	LetterGood = "g"
	LetterBad  = "b"
	LetterSkip = "s"
)

var letterScore = map[string]int{
	LetterGood: 1,
	LetterBad:  -1,
	LetterSkip: 0,
}

// ScoreForLetter resolves a quick-rate letter to its score, or
// rerr.InvalidInput for anything else (spec §7, "unknown rating
// letter").
func ScoreForLetter(letter string) (int, error) {
	score, ok := letterScore[letter]
	if !ok {
		return 0, rerr.NewInvalidInput("unknown rating letter %q", letter)
	}
	return score, nil
}

// UpdateScore is the idempotent tag mutator (original's
// update_rating): replaces the document's single Label entry if
// present, otherwise appends one. Re-applying the same score twice is
// a no-op; applying a different score replaces the existing entry
// rather than duplicating it (spec.md §8 round-trip property: "applied
// with a different letter it replaces without duplicating other
// tags"). Other tags a document carries under different labels are
// left untouched. tags is not mutated in place; the updated slice is
// returned.
func UpdateScore(tags []Tag, score int) []Tag {
	out := make([]Tag, len(tags))
	copy(out, tags)
	for i := range out {
		if out[i].Label == Label {
			out[i].Score = score
			return out
		}
	}
	return append(out, Tag{Label: Label, Score: score})
}

// TagsFromDoc decodes the structured rating tags a document carries
// under its "tag" key. Plain string entries (the bare label-only
// shape docstore.Doc.Tag/WithTag uses elsewhere) are tolerated and
// read as a Tag with Score 0, so a never-rated document round-trips
// cleanly through UpdateScore.
func TagsFromDoc(d docstore.Doc) []Tag {
	raw, _ := d.Raw()["tag"].([]any)
	out := make([]Tag, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case map[string]any:
			label, _ := t["label"].(string)
			score := 0
			switch sv := t["score"].(type) {
			case int:
				score = sv
			case int64:
				score = int(sv)
			case float64:
				score = int(sv)
			}
			if label != "" {
				out = append(out, Tag{Label: label, Score: score})
			}
		case string:
			out = append(out, Tag{Label: t})
		}
	}
	return out
}

// WithTags returns a copy of d with its "tag" key replaced by the
// structured encoding of tags.
func WithTags(d docstore.Doc, tags []Tag) docstore.Doc {
	raw := d.Raw()
	cp := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		cp[k] = v
	}
	encoded := make([]any, len(tags))
	for i, t := range tags {
		encoded[i] = map[string]any{"label": t.Label, "score": t.Score}
	}
	cp["tag"] = encoded
	return docstore.NewDoc(cp)
}

// Apply rates a single document: decode its tags, idempotently update
// the rating dimension's entry, and return the rewritten Doc ready to
// Write.
func Apply(d docstore.Doc, score int) docstore.Doc {
	tags := TagsFromDoc(d)
	tags = UpdateScore(tags, score)
	return WithTags(d, tags)
}

// MarshalCatalogTags renders a tag list as JSON; kept small and
// dependency-free beyond the jsoniter codec already used across the
// domain stack. No package in this repository calls it.
func MarshalCatalogTags(tags []Tag) ([]byte, error) {
	return jsonAPI.Marshal(tags)
}
