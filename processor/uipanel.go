package processor

import (
	"strings"
	"text/template"

	"github.com/RibbonsAlmark/Relay/docstore"
)

// UIPanelProcessor composes a Markdown control-panel document, async,
// highest priority (the viewer renders it first so the panel is never
// the thing a user is waiting on). At frame 0 it additionally emits
// the cached, pre-serialized source catalog (SPEC_FULL §4) rather than
// recomputing or re-serializing it per frame.
type UIPanelProcessor struct{}

func (UIPanelProcessor) Sequential() bool { return false }
func (UIPanelProcessor) Priority() int    { return PriorityHighest }

var panelTemplate = template.Must(template.New("panel").Parse(
	"## {{.Source}}\n\nframe {{.FrameIdx}}\n\n" +
		"[rate good](/rate/{{.SessionID}}/{{.FrameIdx}}/g) · " +
		"[rate bad](/rate/{{.SessionID}}/{{.FrameIdx}}/b) · " +
		"[rate skip](/rate/{{.SessionID}}/{{.FrameIdx}}/s)\n"))

type panelData struct {
	Source    string
	FrameIdx  int64
	SessionID string
}

func (UIPanelProcessor) Process(doc docstore.Doc, ctx Context) ([]Output, error) {
	var sb strings.Builder
	data := panelData{Source: doc.Source(), FrameIdx: ctx.FrameIdx, SessionID: ctx.SessionID}
	if err := panelTemplate.Execute(&sb, data); err != nil {
		return nil, err
	}
	outs := []Output{{
		Path:      "/ui/panel",
		Component: Text{Body: sb.String(), Mime: "text/markdown"},
	}}
	if ctx.FrameIdx == 0 && len(ctx.Catalog) > 0 {
		outs = append(outs, Output{
			Path:      "/ui/catalog",
			Component: Text{Body: string(ctx.Catalog), Mime: "application/json"},
		})
	}
	return outs, nil
}
