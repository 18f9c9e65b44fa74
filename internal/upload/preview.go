package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// PreviewSize bounds preview thumbnails in pixels.
const PreviewSize = 300

// Preview is an encoded thumbnail for the upload queue.
type Preview struct {
	Data        []byte
	ContentType string
}

// Dimensions are the metadata sent when finalizing an upload.
type Dimensions struct {
	Width    *int
	Height   *int
	Duration *float64
}

// Previewer builds thumbnails and reads media dimensions. External tools
// (ffmpeg, ffprobe, sips, convert) are optional.
type Previewer struct {
	// LookPath resolves external tools; nil means exec.LookPath.
	LookPath func(string) (string, error)
}

func (p Previewer) lookPath(name string) (string, error) {
	if p.LookPath != nil {
		return p.LookPath(name)
	}
	return exec.LookPath(name)
}

// Preview returns a thumbnail for f, or nil when none can be produced.
func (p Previewer) Preview(ctx context.Context, f File) (*Preview, error) {
	switch {
	case f.MimeType == "image/heic" || f.MimeType == "image/heif":
		return p.convertedPreview(ctx, f.Path)
	case strings.HasPrefix(f.MimeType, "image/"):
		return imagePreview(f.Path)
	case strings.HasPrefix(f.MimeType, "video/"):
		return p.videoPreview(ctx, f.Path)
	}
	return nil, nil
}

func imagePreview(path string) (*Preview, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := resize.Thumbnail(PreviewSize, PreviewSize, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return &Preview{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}

// convertedPreview handles formats the image package cannot decode.
func (p Previewer) convertedPreview(ctx context.Context, path string) (*Preview, error) {
	size := strconv.Itoa(PreviewSize)
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		if _, err := p.lookPath("sips"); err != nil {
			return nil, nil
		}
		cmd = exec.CommandContext(ctx, "sips", "-s", "format", "jpeg", "-Z", size, path, "--out", "/dev/stdout")
	} else {
		tool := "convert"
		if runtime.GOOS == "windows" {
			tool = "magick"
		}
		if _, err := p.lookPath(tool); err != nil {
			return nil, nil
		}
		args := []string{path, "-resize", size + "x" + size, "jpeg:-"}
		if tool == "magick" {
			args = append([]string{"convert"}, args...)
		}
		cmd = exec.CommandContext(ctx, tool, args...)
	}
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("convert preview: %w", err)
	}
	return &Preview{Data: out, ContentType: "image/jpeg"}, nil
}

// videoPreview extracts the first frame with ffmpeg.
func (p Previewer) videoPreview(ctx context.Context, path string) (*Preview, error) {
	if _, err := p.lookPath("ffmpeg"); err != nil {
		return nil, nil
	}
	scale := fmt.Sprintf("scale=%d:-1", PreviewSize)
	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", path, "-vframes", "1", "-vf", scale, "-f", "image2pipe", "-vcodec", "png", "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("extract video frame: %w", err)
	}
	return &Preview{Data: out, ContentType: "image/png"}, nil
}

// Dimensions reads width and height for images, and duration for videos
// when ffprobe is available. Unknown values stay nil.
func (p Previewer) Dimensions(ctx context.Context, f File) Dimensions {
	switch {
	case strings.HasPrefix(f.MimeType, "image/"):
		file, err := os.Open(f.Path)
		if err != nil {
			return Dimensions{}
		}
		defer file.Close()
		cfg, _, err := image.DecodeConfig(file)
		if err != nil {
			return Dimensions{}
		}
		return Dimensions{Width: &cfg.Width, Height: &cfg.Height}
	case strings.HasPrefix(f.MimeType, "video/"):
		return p.probe(ctx, f.Path)
	}
	return Dimensions{}
}

func (p Previewer) probe(ctx context.Context, path string) Dimensions {
	if _, err := p.lookPath("ffprobe"); err != nil {
		return Dimensions{}
	}
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=width,height:format=duration", "-of", "json", path)
	out, err := cmd.Output()
	if err != nil {
		return Dimensions{}
	}
	return parseProbe(out)
}

func parseProbe(out []byte) Dimensions {
	var res struct {
		Streams []struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &res); err != nil {
		return Dimensions{}
	}
	var d Dimensions
	if len(res.Streams) > 0 && res.Streams[0].Width > 0 {
		w, h := res.Streams[0].Width, res.Streams[0].Height
		d.Width, d.Height = &w, &h
	}
	if secs, err := strconv.ParseFloat(res.Format.Duration, 64); err == nil {
		d.Duration = &secs
	}
	return d
}
