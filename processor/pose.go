package processor

import "github.com/RibbonsAlmark/Relay/docstore"

// PoseProcessor emits the document's pose_estimation as a sequential,
// high-priority component. Sequential because pose drives the
// viewer's camera rig and must never be reordered relative to
// TransformProcessor's output.
type PoseProcessor struct{}

func (PoseProcessor) Sequential() bool { return true }
func (PoseProcessor) Priority() int    { return PriorityHigh }

func (PoseProcessor) Process(doc docstore.Doc, _ Context) ([]Output, error) {
	pe := doc.PoseEstimation()
	if len(pe) == 0 {
		return nil, nil
	}
	p := Pose{
		Transform:  transformFromMap(pe),
		Confidence: floatField(pe, "confidence", 1.0),
	}
	return []Output{{Path: "/pose", Component: p}}, nil
}

func transformFromMap(m map[string]any) Transform3D {
	var t Transform3D
	if tr, ok := m["translation"].([]any); ok {
		for i := 0; i < 3 && i < len(tr); i++ {
			t.Translation[i] = toFloat(tr[i])
		}
	}
	if rot, ok := m["rotation"].([]any); ok {
		for i := 0; i < 4 && i < len(rot); i++ {
			t.Rotation[i] = toFloat(rot[i])
		}
	} else {
		t.Rotation[3] = 1 // identity quaternion
	}
	return t
}

func floatField(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		return toFloat(v)
	}
	return def
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
