package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"sync"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

var (
	ErrUnsupported = errors.New("unsupported media type")
	ErrEmptyVideo  = errors.New("video has no frames")
)

// Layer is what the compositor samples: a still or a moving picture.
type Layer interface {
	Size() image.Point
	Frame(at float64) image.Image
}

// Asset is a decoded background or foreground (MediaAsset). Dimensions and,
// for videos, the duration are known once loading returned.
type Asset struct {
	Kind     Kind
	Name     string
	Width    int
	Height   int
	Duration float64 // seconds, videos only

	Handle *Handle

	img   image.Image
	video *videoSource
}

// NewImageAsset wraps an already decoded picture.
func NewImageAsset(name string, img image.Image) *Asset {
	b := img.Bounds()
	return &Asset{Kind: KindImage, Name: name, Width: b.Dx(), Height: b.Dy(), img: img}
}

func (a *Asset) Size() image.Point {
	return image.Pt(a.Width, a.Height)
}

// Frame returns the picture shown at the given time. Videos loop.
func (a *Asset) Frame(at float64) image.Image {
	if a.Kind == KindVideo && a.video != nil {
		return a.video.frameAt(at)
	}
	return a.img
}

func (a *Asset) Close() error {
	if a.video != nil {
		return a.video.Close()
	}
	return nil
}

var imageExt = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".bmp": true}
var videoExt = map[string]bool{".mp4": true, ".webm": true, ".mov": true, ".mkv": true, ".avi": true, ".m4v": true}

func detectKind(h *Handle) (k Kind, err error) {
	switch {
	case strings.HasPrefix(h.MimeType, "image/"):
		return KindImage, nil
	case strings.HasPrefix(h.MimeType, "video/"):
		return KindVideo, nil
	}
	ext := h.Ext()
	switch {
	case imageExt[ext]:
		return KindImage, nil
	case videoExt[ext]:
		return KindVideo, nil
	}
	err = ErrUnsupported
	return
}

// LoadBackground decodes h as an image or a video depending on its declared type.
func LoadBackground(ctx context.Context, h *Handle) (a *Asset, err error) {
	if h == nil {
		return nil, &defs.ResourceLoadError{Name: "background", Err: os.ErrNotExist}
	}
	defer func() {
		if err != nil {
			err = &defs.ResourceLoadError{Name: h.Name, Err: err}
		}
	}()
	if err = ctx.Err(); err != nil {
		return
	}

	kind, err := detectKind(h)
	if err != nil {
		return
	}
	if kind == KindImage {
		var img image.Image
		if img, err = decodeImage(h.Path); err != nil {
			return
		}
		a = NewImageAsset(h.Name, img)
		a.Handle = h
		return
	}

	v, err := openVideo(h.Path)
	if err != nil {
		return
	}
	a = &Asset{
		Kind:     KindVideo,
		Name:     h.Name,
		Width:    v.width,
		Height:   v.height,
		Duration: v.duration,
		Handle:   h,
		video:    v,
	}
	return
}

func decodeImage(path string) (img image.Image, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if img, _, err = image.Decode(bytes.NewReader(b)); err == nil {
		return
	}

	// formats the registry doesn't know (tiff, ...) go through opencv
	mat, cvErr := gocv.IMDecode(b, gocv.IMReadColor)
	if cvErr != nil {
		return nil, err
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, err
	}
	return mat.ToImage()
}

// videoSource reads frames on demand, sequentially when possible.
type videoSource struct {
	mu       sync.Mutex
	vc       *gocv.VideoCapture
	mat      gocv.Mat
	fps      float64
	frames   int
	width    int
	height   int
	duration float64

	last    int
	lastImg image.Image
}

func openVideo(path string) (v *videoSource, err error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return
	}
	v = &videoSource{
		vc:     vc,
		mat:    gocv.NewMat(),
		fps:    vc.Get(gocv.VideoCaptureFPS),
		frames: int(vc.Get(gocv.VideoCaptureFrameCount)),
		width:  int(vc.Get(gocv.VideoCaptureFrameWidth)),
		height: int(vc.Get(gocv.VideoCaptureFrameHeight)),
		last:   -1,
	}
	if v.fps <= 0 {
		v.fps = 25
	}
	if v.frames <= 0 || v.width <= 0 || v.height <= 0 {
		v.Close()
		return nil, ErrEmptyVideo
	}
	v.duration = float64(v.frames) / v.fps

	// decode the first frame now, so a broken file fails at load time
	if img := v.frameAt(0); img == nil {
		v.Close()
		return nil, ErrEmptyVideo
	}
	return
}

func (v *videoSource) frameAt(at float64) image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()

	if at < 0 {
		at = 0
	}
	idx := int(at*v.fps) % v.frames
	if idx == v.last && v.lastImg != nil {
		return v.lastImg
	}
	if idx != v.last+1 {
		v.vc.Set(gocv.VideoCapturePosFrames, float64(idx))
	}
	if !v.vc.Read(&v.mat) || v.mat.Empty() {
		// keep showing what we had
		return v.lastImg
	}
	img, err := v.mat.ToImage()
	if err != nil {
		return v.lastImg
	}
	v.last, v.lastImg = idx, img
	return img
}

func (v *videoSource) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.mat.Close()
	return v.vc.Close()
}
