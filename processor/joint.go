package processor

import "github.com/RibbonsAlmark/Relay/docstore"

// JointProcessor emits one scalar per joint_state entry, async and
// high priority (scalars are cheap but time-sensitive for plotting).
type JointProcessor struct{}

func (JointProcessor) Sequential() bool { return false }
func (JointProcessor) Priority() int    { return PriorityHigh }

func (JointProcessor) Process(doc docstore.Doc, _ Context) ([]Output, error) {
	entries := doc.JointState()
	if len(entries) == 0 {
		return nil, nil
	}
	outs := make([]Output, 0, len(entries))
	for _, raw := range entries {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		outs = append(outs, Output{
			Path:      "/joint/" + name,
			Component: Scalar{Value: floatField(m, "value", 0)},
		})
	}
	return outs, nil
}
