package processor

import "github.com/RibbonsAlmark/Relay/docstore"

// LidarProcessor emits one point cloud per lidar[] entry, async,
// medium priority.
type LidarProcessor struct{}

func (LidarProcessor) Sequential() bool { return false }
func (LidarProcessor) Priority() int    { return PriorityMedium }

func (LidarProcessor) Process(doc docstore.Doc, _ Context) ([]Output, error) {
	entries := doc.Lidar()
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
			name = "lidar0"
		}
		pc := PointCloud{Points: floatSliceField(m, "points")}
		if len(pc.Points) == 0 {
			continue
		}
		pc.Intensity = floatSliceField(m, "intensity")
		outs = append(outs, Output{Path: "/lidar/" + name, Component: pc})
	}
	return outs, nil
}

func floatSliceField(m map[string]any, key string) []float32 {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(toFloat(v))
	}
	return out
}
