package processor

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/RibbonsAlmark/Relay/docstore"
	"github.com/RibbonsAlmark/Relay/relog"
)

// ImageProcessor decodes camera[] color frames and lidar-attached depth
// frames, resizes them, and re-encodes for the viewer (SPEC_FULL §4
// "Image processing"). Async, medium priority. A single camera entry
// that fails to decode is logged and skipped — it must not fail the
// whole frame (spec §4.3 processor-fault containment).
type ImageProcessor struct{}

func (ImageProcessor) Sequential() bool { return false }
func (ImageProcessor) Priority() int    { return PriorityMedium }

func (ImageProcessor) Process(doc docstore.Doc, ctx Context) ([]Output, error) {
	var outs []Output
	for _, raw := range doc.Cameras() {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		data, _ := m["data"].([]byte)
		if name == "" || len(data) == 0 {
			continue
		}
		enc, err := resizeEncodeColor(data, ctx.Image)
		if err != nil {
			relog.Warningf("image processor: camera %q frame %d: %v", name, ctx.FrameIdx, err)
			continue
		}
		outs = append(outs, Output{Path: "/camera/" + name, Component: enc})
	}

	for _, raw := range doc.Lidar() {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		depth, _ := m["depth_image"].([]byte)
		if len(depth) == 0 {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			name = "lidar0"
		}
		enc, err := resizeEncodeDepth(depth, ctx.Image)
		if err != nil {
			relog.Warningf("image processor: depth %q frame %d: %v", name, ctx.FrameIdx, err)
			continue
		}
		outs = append(outs, Output{Path: "/depth/" + name, Component: enc})
	}
	return outs, nil
}

func resizeEncodeColor(data []byte, cfg ImageConfig) (EncodedImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return EncodedImage{}, err
	}
	resized := imaging.Resize(img, cfg.ColorMaxWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	quality := cfg.ColorQuality
	if quality <= 0 {
		quality = 80
	}
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality}); err != nil {
		return EncodedImage{}, err
	}
	b := resized.Bounds()
	return EncodedImage{Format: "jpeg", Width: b.Dx(), Height: b.Dy(), Data: buf.Bytes()}, nil
}

func resizeEncodeDepth(data []byte, cfg ImageConfig) (EncodedImage, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return EncodedImage{}, err
	}
	resized := imaging.Resize(img, cfg.DepthMaxWidth, 0, imaging.Lanczos)
	b := resized.Bounds()
	if !cfg.DepthCompress {
		return EncodedImage{Format: "raw", Width: b.Dx(), Height: b.Dy(), Data: rawGray16(resized)}, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return EncodedImage{}, err
	}
	return EncodedImage{Format: "png", Width: b.Dx(), Height: b.Dy(), Data: buf.Bytes()}, nil
}

// rawGray16 emits the resized depth image as a flat big-endian uint16
// buffer, used when DEPTH_IMG_COMPRESS is disabled.
func rawGray16(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*2)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g, _, _, _ := img.At(x, y).RGBA()
			out = append(out, byte(g>>8), byte(g))
		}
	}
	return out
}
