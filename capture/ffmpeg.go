package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/alex2wong/how-is-your-song-sub000/media"
)

const (
	readChunk  = 64 * 1024
	stderrTail = 4096
	// frames written for one tick at most; a stalled clock can't flood the encoder
	maxDup = 120
)

// FFmpeg records through an ffmpeg process: RGBA frames on stdin, s16le
// PCM on fd 3, the container comes back on stdout.
type FFmpeg struct {
	Bin string
	// PreviewRTP optionally adds a low latency h264 RTP output, e.g. rtp://127.0.0.1:5004
	PreviewRTP string
	// PreviewAudioRTP adds the tapped audio as opus RTP, e.g. rtp://127.0.0.1:5006
	PreviewAudioRTP string

	mu       sync.Mutex
	encoders map[string]bool
}

func (f *FFmpeg) bin() string {
	if f.Bin == "" {
		return "ffmpeg"
	}
	return f.Bin
}

func (f *FFmpeg) probe(ctx context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.encoders != nil {
		return f.encoders, nil
	}
	out, err := exec.CommandContext(ctx, f.bin(), "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("listing encoders: %w", err)
	}
	f.encoders = ParseEncoders(bytes.NewReader(out))
	return f.encoders, nil
}

func (f *FFmpeg) Negotiate(ctx context.Context) (Profile, error) {
	enc, err := f.probe(ctx)
	if err != nil {
		return Profile{}, &defs.CaptureEnvironmentError{Err: err}
	}
	p, err := Choose(enc, Profiles)
	if err != nil {
		return p, &defs.CaptureEnvironmentError{Err: err}
	}
	f.Println("negotiated", p)
	return p, nil
}

func (f *FFmpeg) args(p Profile, params Params) []string {
	size := fmt.Sprintf("%dx%d", params.Width, params.Height)
	fps := strconv.Itoa(params.FPS)
	a := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba", "-s", size, "-framerate", fps,
		"-thread_queue_size", "512", "-i", "pipe:0",
		"-f", "s16le", "-ar", strconv.Itoa(media.SampleRate), "-ac", strconv.Itoa(media.Channels),
		"-thread_queue_size", "512", "-i", "pipe:3",
		"-map", "0:v", "-map", "1:a",
		"-c:v", p.VideoCodec, "-b:v", strconv.Itoa(params.Bitrate), "-pix_fmt", "yuv420p", "-r", fps,
		"-c:a", p.AudioCodec, "-b:a", "192k",
	}
	if strings.HasPrefix(p.VideoCodec, "libvpx") {
		a = append(a, "-deadline", "realtime", "-cpu-used", "8")
	}
	if p.Container == "mp4" {
		// stdout can't seek back to write the index
		a = append(a, "-movflags", "frag_keyframe+empty_moov")
	}
	a = append(a, "-f", p.Container, "pipe:1")
	if f.PreviewRTP != "" {
		a = append(a, "-map", "0:v", "-an", "-c:v", "libx264", "-preset", "ultrafast",
			"-tune", "zerolatency", "-pix_fmt", "yuv420p", "-f", "rtp", f.PreviewRTP)
	}
	if f.PreviewAudioRTP != "" {
		a = append(a, "-map", "1:a", "-vn", "-c:a", "libopus", "-b:a", "96k",
			"-application", "lowdelay", "-frame_duration", "20", "-f", "rtp", f.PreviewAudioRTP)
	}
	return a
}

func (f *FFmpeg) New(ctx context.Context, p Profile, params Params) (rec Recorder, err error) {
	if params.Width <= 0 || params.Height <= 0 || params.FPS <= 0 {
		return nil, &defs.CaptureEnvironmentError{Err: fmt.Errorf("bad surface %dx%d@%d", params.Width, params.Height, params.FPS)}
	}
	r := &ffmpegRecorder{
		profile: p,
		params:  params,
		events:  make(chan RecorderEvent, 16),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	defer func() {
		if err != nil {
			r.closePipes()
			err = &defs.CaptureEnvironmentError{Err: err}
		}
	}()

	if r.audioR, r.audioW, err = os.Pipe(); err != nil {
		return
	}
	r.cmd = exec.Command(f.bin(), f.args(p, params)...)
	r.cmd.ExtraFiles = []*os.File{r.audioR}
	r.cmd.Stderr = &r.stderr
	if r.stdin, err = r.cmd.StdinPipe(); err != nil {
		return
	}
	if r.stdout, err = r.cmd.StdoutPipe(); err != nil {
		return
	}
	return r, nil
}

func (f *FFmpeg) Println(i ...interface{}) {
	log.Println("ffmpeg", i)
}

type ffmpegRecorder struct {
	profile Profile
	params  Params

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	audioR *os.File
	audioW *os.File
	stderr tailBuffer

	mu      sync.Mutex
	written int // frames
	frame   []byte

	events   chan RecorderEvent
	quit     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
	quitOnce sync.Once
}

func (r *ffmpegRecorder) Start(timeslice time.Duration) error {
	if r.started.Load() {
		return fmt.Errorf("recorder already started")
	}
	if err := r.cmd.Start(); err != nil {
		r.closePipes()
		return &defs.CaptureEnvironmentError{Err: err}
	}
	r.started.Store(true)
	// the child holds its own copy
	r.audioR.Close()
	go r.pump(timeslice)
	return nil
}

func (r *ffmpegRecorder) pump(timeslice time.Duration) {
	defer close(r.done)

	chunks := make(chan []byte, 4)
	go func() {
		defer close(chunks)
		for {
			b := make([]byte, readChunk)
			n, err := r.stdout.Read(b)
			if n > 0 {
				chunks <- b[:n]
			}
			if err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(timeslice)
	defer t.Stop()

	var pending []byte
	flush := func() {
		if len(pending) == 0 {
			return
		}
		r.emit(RecorderEvent{Kind: DataAvailable, Data: pending})
		pending = nil
	}
	for {
		select {
		case b, ok := <-chunks:
			if !ok {
				flush()
				ev := RecorderEvent{Kind: Stopped}
				if err := r.cmd.Wait(); err != nil {
					ev.Err = fmt.Errorf("%w: %s", err, strings.TrimSpace(r.stderr.String()))
				}
				r.emit(ev)
				return
			}
			pending = append(pending, b...)
		case <-t.C:
			flush()
		}
	}
}

func (r *ffmpegRecorder) emit(ev RecorderEvent) {
	select {
	case r.events <- ev:
	case <-r.quit:
	}
}

// WriteFrame repeats img until the video track catches up with at, so the
// constant rate output stays on the audio clock.
func (r *ffmpegRecorder) WriteFrame(img *image.RGBA, at float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	due := int(at*float64(r.params.FPS)) + 1
	n := due - r.written
	if n <= 0 {
		return nil
	}
	if n > maxDup {
		n = maxDup
	}
	pix := r.pack(img)
	for i := 0; i < n; i++ {
		if _, err := r.stdin.Write(pix); err != nil {
			return fmt.Errorf("writing frame %d: %w", r.written, err)
		}
		r.written++
	}
	return nil
}

// pack returns the tightly packed pixels of img at the recorder size.
func (r *ffmpegRecorder) pack(img *image.RGBA) []byte {
	w, h := r.params.Width, r.params.Height
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h && img.Stride == 4*w {
		return img.Pix[:4*w*h]
	}
	if len(r.frame) != 4*w*h {
		r.frame = make([]byte, 4*w*h)
	}
	for y := 0; y < h && y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		n := 4 * b.Dx()
		if n > 4*w {
			n = 4 * w
		}
		copy(r.frame[y*4*w:], row[:n])
	}
	return r.frame
}

func (r *ffmpegRecorder) Audio() io.Writer {
	return r.audioW
}

func (r *ffmpegRecorder) Stop() (err error) {
	r.stopOnce.Do(func() {
		if e := r.stdin.Close(); e != nil {
			err = e
		}
		if e := r.audioW.Close(); e != nil && err == nil {
			err = e
		}
	})
	return
}

func (r *ffmpegRecorder) Abort() {
	r.quitOnce.Do(func() { close(r.quit) })
	started := r.started.Load()
	if started && r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	r.Stop()
	if started {
		<-r.done
	}
}

func (r *ffmpegRecorder) closePipes() {
	for _, c := range []io.Closer{r.audioR, r.audioW} {
		if f, ok := c.(*os.File); ok && f != nil {
			f.Close()
		}
	}
}

func (r *ffmpegRecorder) Events() <-chan RecorderEvent {
	return r.events
}

func (r *ffmpegRecorder) Profile() Profile {
	return r.profile
}

// tailBuffer keeps the last few KB of stderr for error reports.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTail {
		t.buf = t.buf[len(t.buf)-stderrTail:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
