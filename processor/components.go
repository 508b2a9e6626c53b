package processor

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/RibbonsAlmark/Relay/vizstream"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Scalar is a single named numeric reading (joint_state entries).
type Scalar struct {
	Value float64 `json:"value"`
}

func (Scalar) Columnar() bool { return true }

// ScalarColumns is the columnar wire form of a batch of same-path
// Scalar writes (spec §4.5 "attempt a columnar batched write to the
// visualization stream"): one message carrying index-aligned value
// and index columns instead of one Log call per index.
type ScalarColumns struct {
	Indices []int64   `json:"indices"`
	Values  []float64 `json:"values"`
}

func (ScalarColumns) Columnar() bool { return false }

// WriteColumns implements vizstream.ColumnWriter for Scalar.
func (Scalar) WriteColumns(s vizstream.Stream, path string, indices []int64, components []vizstream.Component) error {
	idxs := make([]int64, 0, len(components))
	values := make([]float64, 0, len(components))
	for i, c := range components {
		sc, ok := c.(Scalar)
		if !ok {
			continue
		}
		idxs = append(idxs, indices[i])
		values = append(values, sc.Value)
	}
	if len(idxs) == 0 {
		return nil
	}
	s.SetTimeSequence(idxs[len(idxs)-1])
	return s.Log(path, ScalarColumns{Indices: idxs, Values: values})
}

// Transform3D is a rigid-body transform (translation + quaternion).
type Transform3D struct {
	Translation [3]float64 `json:"translation"`
	Rotation    [4]float64 `json:"rotation"` // x, y, z, w
}

func (Transform3D) Columnar() bool { return true }

// Transform3DColumns is the columnar wire form of a batch of same-path
// Transform3D writes, mirroring ScalarColumns.
type Transform3DColumns struct {
	Indices      []int64      `json:"indices"`
	Translations [][3]float64 `json:"translations"`
	Rotations    [][4]float64 `json:"rotations"`
}

func (Transform3DColumns) Columnar() bool { return false }

// WriteColumns implements vizstream.ColumnWriter for Transform3D.
func (Transform3D) WriteColumns(s vizstream.Stream, path string, indices []int64, components []vizstream.Component) error {
	idxs := make([]int64, 0, len(components))
	translations := make([][3]float64, 0, len(components))
	rotations := make([][4]float64, 0, len(components))
	for i, c := range components {
		t, ok := c.(Transform3D)
		if !ok {
			continue
		}
		idxs = append(idxs, indices[i])
		translations = append(translations, t.Translation)
		rotations = append(rotations, t.Rotation)
	}
	if len(idxs) == 0 {
		return nil
	}
	s.SetTimeSequence(idxs[len(idxs)-1])
	return s.Log(path, Transform3DColumns{Indices: idxs, Translations: translations, Rotations: rotations})
}

// Pose is a full pose estimate; kept distinct from Transform3D so the
// sequential pose processor and the transform processor are free to
// diverge (e.g. a confidence score) without forcing a shared type.
type Pose struct {
	Transform  Transform3D `json:"transform"`
	Confidence float64     `json:"confidence"`
}

func (Pose) Columnar() bool { return false }

// Text is an opaque text/markdown document (UI panels, metadata).
type Text struct {
	Body string `json:"body"`
	Mime string `json:"mime"`
}

func (Text) Columnar() bool { return false }

// EncodedImage is an already-encoded image buffer (JPEG/PNG) plus the
// dimensions it was resized to.
type EncodedImage struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}

func (EncodedImage) Columnar() bool { return false }

// NBytes implements the batcher's sizeHinter (spec §9 "estimate_payload_size"):
// the encoded buffer is the dominant cost, so its length is the hint.
func (e EncodedImage) NBytes() int { return len(e.Data) }

// PointCloud is a flat xyz(+intensity) buffer from a lidar scan.
type PointCloud struct {
	Points    []float32 `json:"points"` // x0,y0,z0, x1,y1,z1, ...
	Intensity []float32 `json:"intensity,omitempty"`
}

func (PointCloud) Columnar() bool { return false }

// NBytes implements the batcher's sizeHinter: both float32 buffers
// dominate a PointCloud's wire size.
func (p PointCloud) NBytes() int {
	return 4*len(p.Points) + 4*len(p.Intensity)
}
