package mvportal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/alex2wong/how-is-your-song-sub000/anim"
	"github.com/alex2wong/how-is-your-song-sub000/capture"
	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/alex2wong/how-is-your-song-sub000/lyrics"
	"github.com/alex2wong/how-is-your-song-sub000/media"
	"github.com/alex2wong/how-is-your-song-sub000/relay"
	"github.com/alex2wong/how-is-your-song-sub000/settings"
	"github.com/alex2wong/how-is-your-song-sub000/transcribe"
	"gopkg.in/yaml.v2"
)

// Portal turns a song, a background and lyrics into a music video. One
// generation runs at a time; starting another one stops the current run.
type Portal struct {
	*defs.PortalConf

	context.Context
	context.CancelFunc

	Handles     *media.Handles
	Decoder     *media.Decoder
	Compositor  *anim.Compositor
	Recorders   capture.RecorderFactory
	Settings    settings.Store
	Monitor     capture.Monitor // nil without livekit
	Transcriber *transcribe.Client
	Parser      *lyrics.Parser

	ticker capture.TickerFunc
	player capture.PlayerFunc

	gen sync.Mutex // serializes run swaps

	mu       sync.Mutex
	style    defs.StyleConfig
	current  *run
	progress defs.Progress
}

// NewPortal reads the yaml config at confPath.
func NewPortal(confPath string) (ap *Portal, err error) {
	b, err := os.ReadFile(confPath)
	if err != nil {
		return
	}
	conf := &defs.PortalConf{}
	if err = yaml.Unmarshal(b, conf); err != nil {
		return
	}
	return New(context.Background(), conf)
}

func New(ctx context.Context, conf *defs.PortalConf) (ap *Portal, err error) {
	conf.Defaults()
	ap = &Portal{
		PortalConf:  conf,
		Decoder:     &media.Decoder{FFmpeg: conf.FFmpeg, FFprobe: conf.FFprobe},
		Transcriber: transcribe.New(conf.TranscribeURL),
		Parser:      &lyrics.Parser{Strict: conf.StrictLyrics},
		progress:    idleProgress(),
	}
	ap.Context, ap.CancelFunc = context.WithCancel(ctx)

	if ap.Handles, err = media.NewHandles(conf.Ram); err != nil {
		return nil, err
	}
	fonts, err := anim.LoadFonts(conf.FontPath)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", conf.FontPath, err)
	}
	ap.Compositor = anim.NewCompositor(fonts)

	rc := ap.monitorConf()
	rec := &capture.FFmpeg{Bin: conf.FFmpeg}
	if rc.Enabled() {
		ap.Monitor = relay.NewMonitor(ap.Context, rc)
		if rc.RTPPort > 0 {
			rec.PreviewRTP = fmt.Sprintf("rtp://127.0.0.1:%d", rc.RTPPort)
			rec.PreviewAudioRTP = fmt.Sprintf("rtp://127.0.0.1:%d", rc.AudioRTPPort())
		}
	}
	ap.Recorders = rec

	if ap.Settings, err = settings.Open(conf.Redis, conf.SettingsFile); err != nil {
		return nil, err
	}
	ap.style, err = ap.Settings.Load(ap.Context)
	switch {
	case errors.Is(err, settings.ErrNotFound):
		ap.style = conf.Style
	case err != nil:
		ap.Println("stored style unreadable, using configured", err)
		ap.style = conf.Style
	}
	return ap, nil
}

func (ap *Portal) monitorConf() relay.Conf {
	return relay.Conf{
		Ws:      ap.Ws,
		Key:     ap.Key,
		Secret:  ap.Secret,
		Room:    ap.MonitorRoom,
		RTPPort: ap.MonitorRTP,
		FFmpeg:  ap.FFmpeg,
	}
}

func idleProgress() defs.Progress {
	return defs.Progress{Status: defs.Idle, Message: defs.Describe(defs.Idle, 0, nil)}
}

func (ap *Portal) Close() {
	ap.stopCurrent()
	if err := ap.Settings.Close(); err != nil {
		ap.Println("settings close", err)
	}
	ap.CancelFunc()
}

func (ap *Portal) Println(i ...interface{}) {
	log.Println("portal", i)
}

// Generate renders req and blocks until the run ends. Validation errors
// come back before anything is acquired; every later failure also shows
// in Status.
func (ap *Portal) Generate(ctx context.Context, req Request) (a *capture.Artifact, err error) {
	style := ap.Style()
	if req.Style != nil {
		style = req.Style.Normalize()
	}
	if err = req.Validate(style); err != nil {
		ap.Println("rejected", err)
		return nil, err
	}

	r := ap.begin()
	defer close(r.finished)

	a, err = r.Run(ctx, r.loader(req, style), ap.onProgress(r))
	r.release()
	if err != nil {
		if !errors.Is(err, defs.ErrTerminated) {
			ap.Println("generation failed", err)
		}
		return nil, err
	}

	a.Name = FileName(r.title, r.author, a.Profile.Ext)
	ap.mu.Lock()
	r.artifact = a
	ap.mu.Unlock()
	ap.export(a)
	return a, nil
}

// begin stops whatever runs, frees what it held and installs a new run.
func (ap *Portal) begin() *run {
	ap.gen.Lock()
	defer ap.gen.Unlock()

	ap.stopCurrent()
	r := ap.newRun()
	ap.mu.Lock()
	ap.current = r
	ap.mu.Unlock()
	return r
}

// stopCurrent terminates the current run and waits until it let go of
// its recorder, player and handles. The previous artifact is revoked.
func (ap *Portal) stopCurrent() {
	ap.mu.Lock()
	prev := ap.current
	ap.current = nil
	ap.mu.Unlock()
	if prev == nil {
		return
	}
	prev.Terminate()
	<-prev.finished
	ap.mu.Lock()
	a := prev.artifact
	ap.mu.Unlock()
	if a != nil {
		ap.Handles.Revoke(a.Handle)
	}
}

func (ap *Portal) onProgress(r *run) func(defs.Progress) {
	return func(p defs.Progress) {
		ap.mu.Lock()
		defer ap.mu.Unlock()
		if ap.current == r {
			ap.progress = p
		}
		if p.Status != defs.Rendering {
			ap.Println(p.Status, p.Message)
		}
	}
}

// Terminate stops the current run, if any. Calling it again is harmless.
func (ap *Portal) Terminate() {
	ap.mu.Lock()
	r := ap.current
	ap.mu.Unlock()
	if r != nil {
		r.Terminate()
	}
}

// ResetAll stops everything, drops every handle including finished videos
// and brings the style back to its defaults.
func (ap *Portal) ResetAll(ctx context.Context) error {
	ap.gen.Lock()
	defer ap.gen.Unlock()

	ap.stopCurrent()
	n := ap.Handles.RevokeAll()
	ap.Println("reset, revoked", n)

	ap.mu.Lock()
	ap.style = ap.PortalConf.Style
	ap.progress = idleProgress()
	ap.mu.Unlock()
	return ap.Settings.Save(ctx, ap.PortalConf.Style)
}

func (ap *Portal) Status() defs.Progress {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.progress
}

// Artifact is the video of the last completed run, nil if there is none.
func (ap *Portal) Artifact() *capture.Artifact {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	if ap.current == nil {
		return nil
	}
	select {
	case <-ap.current.finished:
		return ap.current.artifact
	default:
		return nil
	}
}

// ReleaseArtifact revokes a's bytes once the caller is done with them.
func (ap *Portal) ReleaseArtifact(a *capture.Artifact) bool {
	if a == nil {
		return false
	}
	ap.mu.Lock()
	if ap.current != nil && ap.current.artifact == a {
		ap.current.artifact = nil
	}
	ap.mu.Unlock()
	return ap.Handles.Revoke(a.Handle)
}

func (ap *Portal) Style() defs.StyleConfig {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.style
}

// SetStyle validates and persists s; the running generation keeps its own copy.
func (ap *Portal) SetStyle(ctx context.Context, s defs.StyleConfig) error {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return err
	}
	ap.mu.Lock()
	ap.style = s
	ap.mu.Unlock()
	return ap.Settings.Save(ctx, s)
}

// FetchLyrics asks the transcription service for timed lyrics of the audio in src.
func (ap *Portal) FetchLyrics(ctx context.Context, src Source) (raw string, tl lyrics.Timeline, err error) {
	h, err := ap.open(src)
	if err != nil {
		return
	}
	defer ap.Handles.Revoke(h)
	if raw, err = ap.Transcriber.Fetch(ctx, h); err != nil {
		return
	}
	tl, err = ap.Parser.Parse(raw)
	return
}

func (ap *Portal) export(a *capture.Artifact) {
	if ap.Output == "" {
		return
	}
	dst := filepath.Join(ap.Output, a.Name)
	if err := copyFile(a.Handle.Path, dst); err != nil {
		ap.Println("export", err)
		return
	}
	ap.Println("saved", dst)
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FileName builds "title-author.ext" with anything path-hostile replaced.
func FileName(title, author, ext string) string {
	name := sanitize(title)
	if name == "" {
		name = "mv"
	}
	if a := sanitize(author); a != "" {
		name += "-" + a
	}
	return name + ext
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == ' ', r == '(', r == ')':
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
	return strings.Trim(s, "_ ")
}
