package httpapi

import (
	"html/template"
	"net/http"

	"github.com/RibbonsAlmark/Relay/rating"
	"github.com/RibbonsAlmark/Relay/rerr"
)

// confirmTemplate renders the one-click rating confirmation page the
// original's Jinja2 quick_rate views return (SPEC_FULL §8
// "Quick-rate HTML endpoints").
var confirmTemplate = template.Must(template.New("confirm").Parse(
	`<!doctype html><html><body><p>rated {{.Scope}} as {{.Letter}}</p></body></html>`))

type confirmData struct {
	Scope  string
	Letter string
}

func writeConfirm(w http.ResponseWriter, scope, letter string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = confirmTemplate.Execute(w, confirmData{Scope: scope, Letter: letter})
}

func writeHTMLError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case rerr.IsNotFound(err):
		status = http.StatusNotFound
	case rerr.IsInvalidInput(err):
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

// handleQuickRate implements GET /rate/{uuid}/{frame}/{letter} — the
// per-frame link UIPanelProcessor embeds in its Markdown panel.
func (s *Server) handleQuickRate(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/rate/")
	if len(parts) != 3 {
		writeHTMLError(w, rerr.NewInvalidInput("expected /rate/{uuid}/{frame}/{letter}"))
		return
	}
	uuid, frameStr, letter := parts[0], parts[1], parts[2]

	sess, err := sessionByUUID(s.mgr, uuid)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	frameIdx, err := parseIndex(frameStr)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	score, err := rating.ScoreForLetter(letter)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	if err := s.raters.RateFrame(r.Context(), sess.Dataset, sess.Collection, frameIdx, score); err != nil {
		writeHTMLError(w, err)
		return
	}
	writeConfirm(w, "frame "+frameStr, letter)
}

// handleQuickRateCollection implements GET
// /rate_collection/{uuid}/{letter} (original's quick_rate_collection).
func (s *Server) handleQuickRateCollection(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/rate_collection/")
	if len(parts) != 2 {
		writeHTMLError(w, rerr.NewInvalidInput("expected /rate_collection/{uuid}/{letter}"))
		return
	}
	uuid, letter := parts[0], parts[1]

	sess, err := sessionByUUID(s.mgr, uuid)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	score, err := rating.ScoreForLetter(letter)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	if err := s.raters.RateCollection(r.Context(), sess.Dataset, sess.Collection, score); err != nil {
		writeHTMLError(w, err)
		return
	}
	writeConfirm(w, "the whole collection", letter)
}

// handleQuickRateSource implements GET
// /rate_source/{uuid}/{source}/{letter} (original's
// quick_rate_source).
func (s *Server) handleQuickRateSource(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/rate_source/")
	if len(parts) != 3 {
		writeHTMLError(w, rerr.NewInvalidInput("expected /rate_source/{uuid}/{source}/{letter}"))
		return
	}
	uuid, source, letter := parts[0], parts[1], parts[2]

	sess, err := sessionByUUID(s.mgr, uuid)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	score, err := rating.ScoreForLetter(letter)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	if err := s.raters.RateSource(r.Context(), sess.Dataset, sess.Collection, source, score); err != nil {
		writeHTMLError(w, err)
		return
	}
	writeConfirm(w, "source "+source, letter)
}

// handleQuickRateRange implements GET
// /rate_range/{uuid}/{letter}?start=&end= (original's
// set_range_local/quick_confirm_range, rating by numeric timestamp
// bounds).
func (s *Server) handleQuickRateRange(w http.ResponseWriter, r *http.Request) {
	parts := pathTail(r, "/rate_range/")
	if len(parts) != 2 {
		writeHTMLError(w, rerr.NewInvalidInput("expected /rate_range/{uuid}/{letter}"))
		return
	}
	uuid, letter := parts[0], parts[1]

	sess, err := sessionByUUID(s.mgr, uuid)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	start, err := parseFloat(r.URL.Query().Get("start"))
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	end, err := parseFloat(r.URL.Query().Get("end"))
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	score, err := rating.ScoreForLetter(letter)
	if err != nil {
		writeHTMLError(w, err)
		return
	}
	if err := s.raters.RateRange(r.Context(), sess.Dataset, sess.Collection, start, end, score); err != nil {
		writeHTMLError(w, err)
		return
	}
	writeConfirm(w, "the range", letter)
}
