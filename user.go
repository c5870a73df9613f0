package mvportal

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alex2wong/how-is-your-song-sub000/capture"
	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/alex2wong/how-is-your-song-sub000/media"
)

// Source is one user supplied file, either already on disk or a reader.
type Source struct {
	Name     string    `json:"name"`
	MimeType string    `json:"mime"`
	Path     string    `json:"path"`
	Reader   io.Reader `json:"-"`
}

func (s *Source) empty() bool {
	return s == nil || (s.Path == "" && s.Reader == nil)
}

func (s *Source) name() string {
	if s.Name != "" {
		return s.Name
	}
	return filepath.Base(s.Path)
}

func (s *Source) mime() string {
	if s.MimeType != "" {
		return s.MimeType
	}
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(s.name())))
}

type Request struct {
	Audio         *Source           `json:"audio"`
	Background    *Source           `json:"background"`
	Foreground    *Source           `json:"foreground,omitempty"`
	Lyrics        string            `json:"lyrics"`
	RequireLyrics bool              `json:"requireLyrics"`
	Title         string            `json:"title"`
	Author        string            `json:"author"`
	Style         *defs.StyleConfig `json:"style,omitempty"` // the stored style when nil
}

// Validate checks presence only; decoding problems surface later as
// ResourceLoadError or ParseError.
func (r *Request) Validate(style defs.StyleConfig) error {
	if r.Audio.empty() {
		return &defs.ValidationError{Field: "audio", Reason: "no audio file"}
	}
	if r.Background.empty() {
		return &defs.ValidationError{Field: "background", Reason: "no background image or video"}
	}
	if r.RequireLyrics && strings.TrimSpace(r.Lyrics) == "" {
		return &defs.ValidationError{Field: "lyrics", Reason: "lyrics are required"}
	}
	return style.Validate()
}

// run is one generation together with everything it acquired.
type run struct {
	*capture.Session
	ap *Portal

	title, author string

	mu      sync.Mutex
	handles []*media.Handle
	assets  []*media.Asset
	wave    *media.WaveWriter

	artifact *capture.Artifact
	finished chan struct{} // closed after Generate is done with the run
}

func (ap *Portal) newRun() *run {
	s := capture.NewSession(ap.Recorders, ap.Compositor, ap.Handles)
	if ap.ticker != nil {
		s.Ticker = ap.ticker
	}
	if ap.player != nil {
		s.Player = ap.player
	}
	if ap.Monitor != nil {
		s.Monitor = ap.Monitor
	}
	return &run{Session: s, ap: ap, finished: make(chan struct{})}
}

// open copies src into a handle owned by the portal.
func (ap *Portal) open(src Source) (*media.Handle, error) {
	if src.Reader != nil {
		return ap.Handles.Create(src.name(), src.mime(), src.Reader)
	}
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, &defs.ResourceLoadError{Name: src.name(), Err: err}
	}
	defer f.Close()
	return ap.Handles.Create(src.name(), src.mime(), f)
}

func (r *run) open(src *Source) (*media.Handle, error) {
	h, err := r.ap.open(*src)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()
	return h, nil
}

func (r *run) layer(ctx context.Context, src *Source) (*media.Asset, error) {
	h, err := r.open(src)
	if err != nil {
		return nil, err
	}
	a, err := media.LoadBackground(ctx, h)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.assets = append(r.assets, a)
	r.mu.Unlock()
	return a, nil
}

// loader parses the lyrics first, so bad text fails before any decoding.
func (r *run) loader(req Request, style defs.StyleConfig) capture.LoadFunc {
	r.title, r.author = req.Title, req.Author
	if r.title == "" {
		r.title = style.Title
	}
	if r.author == "" {
		r.author = style.Author
	}

	return func(ctx context.Context) (in *capture.Input, err error) {
		in = &capture.Input{Style: style, Title: r.title, Author: r.author}
		if in.Timeline, err = r.ap.Parser.Parse(req.Lyrics); err != nil {
			return nil, err
		}

		bg, err := r.layer(ctx, req.Background)
		if err != nil {
			return nil, err
		}
		in.Background = bg
		if !req.Foreground.empty() {
			fg, err := r.layer(ctx, req.Foreground)
			if err != nil {
				return nil, err
			}
			in.Foreground = fg
		}

		h, err := r.open(req.Audio)
		if err != nil {
			return nil, err
		}
		if in.Audio, err = r.ap.Decoder.LoadAudio(ctx, h); err != nil {
			return nil, err
		}

		if r.ap.AudioDump != "" {
			name := filepath.Join(r.ap.AudioDump, FileName(r.title, r.author, ".wav"))
			if err := os.MkdirAll(r.ap.AudioDump, 0755); err != nil {
				r.ap.Println("audio dump", err)
			} else if w, err := media.CreateWave(name); err != nil {
				r.ap.Println("audio dump", err)
			} else {
				r.wave = w
				r.AudioOut = w
			}
		}
		return in, nil
	}
}

// release frees the inputs of the run. The artifact is not touched.
func (r *run) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assets {
		a.Close()
	}
	for _, h := range r.handles {
		r.ap.Handles.Revoke(h)
	}
	r.assets, r.handles = nil, nil
	if r.wave != nil {
		if err := r.wave.Close(); err != nil {
			r.ap.Println("audio dump", err)
		}
		r.wave = nil
	}
}
