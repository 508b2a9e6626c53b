package processor

import "github.com/RibbonsAlmark/Relay/docstore"

// MetaProcessor emits the document's info sub-document as a JSON text
// blob at /meta, async, low priority — the least time-sensitive
// component, useful mainly for debugging/inspection in the viewer.
type MetaProcessor struct{}

func (MetaProcessor) Sequential() bool { return false }
func (MetaProcessor) Priority() int    { return PriorityLow }

func (MetaProcessor) Process(doc docstore.Doc, _ Context) ([]Output, error) {
	info := doc.Info()
	if len(info) == 0 {
		return nil, nil
	}
	body, err := jsonAPI.MarshalToString(info)
	if err != nil {
		return nil, err
	}
	return []Output{{Path: "/meta", Component: Text{Body: body, Mime: "application/json"}}}, nil
}
