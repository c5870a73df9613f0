package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/alex2wong/how-is-your-song-sub000/anim"
	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/alex2wong/how-is-your-song-sub000/lyrics"
	"github.com/alex2wong/how-is-your-song-sub000/media"
)

var errRecorderGone = errors.New("recorder stopped while rendering")

// Input is what a run renders, produced while Loading.
type Input struct {
	Audio      *media.AudioResource
	Background media.Layer
	Foreground media.Layer
	Timeline   lyrics.Timeline
	Style      defs.StyleConfig
	Title      string
	Author     string
}

// LoadFunc acquires the resources of a run. ctx is cancelled on Terminate.
type LoadFunc func(ctx context.Context) (*Input, error)

type Artifact struct {
	Handle   *media.Handle
	Profile  Profile
	Size     int64
	Duration float64 // seconds of audio recorded
	Name     string  // suggested download name
}

// Monitor gets every composited frame while rendering. The image is reused
// for the next frame, so it must be copied if kept. Audio, when not nil, is
// connected to the graph after Begin and hears what the recorder hears.
type Monitor interface {
	Begin(p Params) error
	WriteFrame(img *image.RGBA, at float64)
	Audio() io.Writer
	End()
}

type PlayerFunc func(*media.AudioResource) media.Player

// Session is a single generation run. All of its work happens on the
// goroutine calling Run; Terminate may come from anywhere.
type Session struct {
	Recorders  RecorderFactory
	Compositor *anim.Compositor
	Handles    *media.Handles
	Ticker     TickerFunc
	Player     PlayerFunc
	Monitor    Monitor   // optional
	AudioOut   io.Writer // optional, gets a copy of the recorded audio

	m          *Machine
	ran        atomic.Bool
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{}
	onProgress func(defs.Progress)

	mu       sync.Mutex
	progress defs.Progress
}

func NewSession(rf RecorderFactory, c *anim.Compositor, hs *media.Handles) *Session {
	return &Session{
		Recorders:  rf,
		Compositor: c,
		Handles:    hs,
		Ticker:     NewTicker,
		Player:     func(r *media.AudioResource) media.Player { return media.NewPlayer(r) },
		m:          NewMachine(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		progress:   defs.Progress{Status: defs.Idle, Message: defs.Describe(defs.Idle, 0, nil)},
	}
}

// Terminate asks the run to stop; safe to call any number of times.
func (s *Session) Terminate() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once Run returned and everything it held is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Progress() defs.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Session) State() defs.Status {
	return s.m.State()
}

func (s *Session) report(st defs.Status, fraction float64, err error) {
	s.mu.Lock()
	s.progress = defs.Progress{Status: st, Fraction: fraction, Message: defs.Describe(st, fraction, err)}
	p := s.progress
	s.mu.Unlock()
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func (s *Session) to(st defs.Status, fraction float64, err error) {
	if e := s.m.To(st); e != nil {
		s.Println(e)
		return
	}
	s.report(st, fraction, err)
}

func (s *Session) fail(err error) error {
	s.to(defs.Failed, s.Progress().Fraction, err)
	return err
}

func (s *Session) terminated() error {
	s.to(defs.Terminated, s.Progress().Fraction, nil)
	return defs.ErrTerminated
}

func (s *Session) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// Run loads, renders and finalizes. It returns the artifact, or the error
// the run ended with (defs.ErrTerminated when stopped on request).
func (s *Session) Run(ctx context.Context, load LoadFunc, onProgress func(defs.Progress)) (*Artifact, error) {
	if s.ran.Swap(true) {
		return nil, fmt.Errorf("session already ran")
	}
	defer close(s.done)
	s.onProgress = onProgress

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-runCtx.Done():
		}
	}()

	s.to(defs.Loading, 0, nil)
	in, err := load(runCtx)
	if s.stopped() || ctx.Err() != nil {
		return nil, s.terminated()
	}
	if err != nil {
		return nil, s.fail(err)
	}
	return s.render(ctx, runCtx, in)
}

func environment(err error) error {
	var env *defs.CaptureEnvironmentError
	if errors.As(err, &env) {
		return err
	}
	return &defs.CaptureEnvironmentError{Err: err}
}

func (s *Session) render(parent, ctx context.Context, in *Input) (*Artifact, error) {
	profile, err := s.Recorders.Negotiate(ctx)
	if err != nil {
		if s.stopped() {
			return nil, s.terminated()
		}
		return nil, s.fail(environment(err))
	}
	res := in.Style.Resolution()
	params := Params{Width: res.X, Height: res.Y, FPS: in.Style.FPS, Bitrate: in.Style.Bitrate}

	rec, err := s.Recorders.New(ctx, profile, params)
	if err != nil {
		if s.stopped() {
			return nil, s.terminated()
		}
		return nil, s.fail(environment(err))
	}
	graph := NewGraph(rec.Audio())
	graph.Connect(s.AudioOut)
	player := s.Player(in.Audio)

	if s.stopped() {
		rec.Abort()
		return nil, s.terminated()
	}
	if err = rec.Start(Timeslice); err != nil {
		rec.Abort()
		return nil, s.fail(environment(err))
	}

	monitor := s.Monitor
	if monitor != nil {
		if err := monitor.Begin(params); err != nil {
			s.Println("monitor off", err)
			monitor = nil
		} else {
			defer monitor.End()
			graph.Connect(monitor.Audio())
		}
	}

	teardown := func() {
		rec.Abort()
		player.Pause()
		graph.Close()
	}

	s.to(defs.Rendering, 0, nil)
	if err = player.Play(graph); err != nil {
		teardown()
		return nil, s.fail(&defs.PlaybackError{Err: err})
	}

	ticker := s.Ticker(params.FPS)
	defer ticker.Stop()
	frames := NewFrames(player)
	dc := anim.NewSurface(in.Style)
	img := dc.Image().(*image.RGBA)
	var out bytes.Buffer

render:
	for {
		select {
		case <-ctx.Done():
			teardown()
			return nil, s.terminated()

		case ev := <-player.Events():
			switch ev.Kind {
			case media.PlayerEnded:
				frames.MarkEnded()
			case media.PlayerError:
				teardown()
				return nil, s.fail(&defs.PlaybackError{Err: ev.Err})
			}

		case ev := <-rec.Events():
			if ev.Kind == DataAvailable {
				out.Write(ev.Data)
				continue
			}
			teardown()
			if ev.Err != nil {
				return nil, s.fail(fmt.Errorf("%v: %w", errRecorderGone, ev.Err))
			}
			return nil, s.fail(errRecorderGone)

		case <-ticker.C():
			t, ok := frames.Next()
			if !ok {
				continue
			}
			s.Compositor.DrawFrame(dc, anim.Frame{
				Background: in.Background,
				Foreground: in.Foreground,
				Timeline:   in.Timeline,
				At:         t.At,
				Style:      in.Style,
				Title:      in.Title,
				Author:     in.Author,
			})
			if err := rec.WriteFrame(img, t.At); err != nil {
				teardown()
				return nil, s.fail(err)
			}
			if monitor != nil {
				monitor.WriteFrame(img, t.At)
			}
			s.report(defs.Rendering, t.Progress, nil)
			if t.Ended {
				break render
			}
		}
	}

	// terminate is no longer honoured, only the caller's context
	s.to(defs.Finalizing, 1, nil)
	ticker.Stop()
	player.Pause()
	graph.Close()
	if err := rec.Stop(); err != nil {
		s.Println("stop", err)
	}

finalize:
	for {
		select {
		case <-parent.Done():
			rec.Abort()
			return nil, s.fail(parent.Err())
		case ev := <-rec.Events():
			if ev.Kind == DataAvailable {
				out.Write(ev.Data)
				continue
			}
			if ev.Err != nil {
				return nil, s.fail(fmt.Errorf("finalizing: %w", ev.Err))
			}
			break finalize
		}
	}

	if out.Len() == 0 {
		return nil, s.fail(&defs.CaptureEmptyError{Profile: profile.String()})
	}
	size := int64(out.Len())
	h, err := s.Handles.Create("mv"+profile.Ext, profile.MimeType, &out)
	if err != nil {
		return nil, s.fail(err)
	}
	a := &Artifact{Handle: h, Profile: profile, Size: size, Duration: player.Position()}
	s.Println("recorded", size, "bytes", profile)
	s.to(defs.Completed, 1, nil)
	return a, nil
}

func (s *Session) Println(i ...interface{}) {
	log.Println("session", i)
}
