package processor

import "github.com/RibbonsAlmark/Relay/docstore"

// TransformProcessor emits the document's transform[] array as
// sequential, default-priority components — one per listed entity
// path.
type TransformProcessor struct{}

func (TransformProcessor) Sequential() bool { return true }
func (TransformProcessor) Priority() int    { return PriorityDefault }

func (TransformProcessor) Process(doc docstore.Doc, _ Context) ([]Output, error) {
	entries := doc.Transforms()
	if len(entries) == 0 {
		return nil, nil
	}
	outs := make([]Output, 0, len(entries))
	for _, raw := range entries {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		path, _ := m["path"].(string)
		if path == "" {
			continue
		}
		outs = append(outs, Output{Path: path, Component: transformFromMap(m)})
	}
	return outs, nil
}
