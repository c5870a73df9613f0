package relay

import (
	"context"
	"errors"
	"image"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/alex2wong/how-is-your-song-sub000/capture"
	"github.com/gen2brain/x264-go"
	webrtc "github.com/pion/webrtc/v3"
)

const monitorIdentity = "mv-render"

var ErrNotConfigured = errors.New("livekit monitor not configured")

var _ capture.Monitor = (*Monitor)(nil)

type Conf struct {
	Ws     string
	Key    string
	Secret string
	Room   string
	// RTPPort > 0 relays the recorder's RTP preview instead of encoding here
	RTPPort int
	// FFmpeg encodes the monitor audio when there is no recorder preview
	FFmpeg string
}

func (c Conf) Enabled() bool {
	return c.Ws != "" && c.Key != "" && c.Secret != "" && c.Room != ""
}

// AudioRTPPort is where the recorder sends its opus preview; the port
// right after RTPPort carries the video's RTCP.
func (c Conf) AudioRTPPort() int {
	if c.RTPPort <= 0 {
		return 0
	}
	return c.RTPPort + 2
}

// Monitor shows a run live in a LiveKit room: the composited video and
// the audio the run plays.
type Monitor struct {
	conf Conf
	ctx  context.Context

	mu     sync.Mutex
	relay  *Relay
	udp    *UdpReader
	enc    *x264.Encoder
	pw     *io.PipeWriter
	frames chan *image.RGBA
	done   chan struct{}

	audioUdp *UdpReader
	opus     *opusEncoder
}

func NewMonitor(ctx context.Context, c Conf) *Monitor {
	return &Monitor{conf: c, ctx: ctx}
}

func (m *Monitor) Begin(p capture.Params) (err error) {
	if !m.conf.Enabled() {
		return ErrNotConfigured
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.relay, err = Connect(m.ctx, m.conf, monitorIdentity); err != nil {
		return
	}
	defer func() {
		if err != nil {
			m.relay.Close()
			m.relay = nil
		}
	}()
	frame := time.Second / time.Duration(p.FPS)

	if m.conf.RTPPort > 0 {
		m.udp = NewUdpReader(m.relay.Context, m.conf.RTPPort)
		if err = m.udp.Listen(); err != nil {
			return
		}
		if _, err = m.relay.AddReadCloser(NewTrackReadCloser(m.udp, webrtc.MimeTypeH264), webrtc.MimeTypeH264, frame); err != nil {
			return
		}
	} else {
		pr, pw := io.Pipe()
		m.enc, err = x264.NewEncoder(pw, &x264.Options{
			Width:     p.Width,
			Height:    p.Height,
			FrameRate: p.FPS,
			Tune:      "zerolatency",
			Preset:    "veryfast",
			Profile:   "baseline",
			LogLevel:  x264.LogError,
		})
		if err != nil {
			pw.Close()
			return
		}
		if _, err = m.relay.AddReadCloser(pr, webrtc.MimeTypeH264, frame); err != nil {
			m.enc.Close()
			pw.Close()
			return
		}
		m.pw = pw
		m.frames = make(chan *image.RGBA, 1)
		m.done = make(chan struct{})
		go m.encode(m.enc, m.frames, m.done)
	}

	if err := m.addAudio(); err != nil {
		m.Println("audio off", err)
		m.closeAudio()
	}
	m.Println("monitoring", m.conf.Room, p.Width, p.Height, p.FPS)
	return nil
}

// addAudio publishes opus read from a local RTP port. With a recorder
// preview the recorder feeds that port, otherwise a local encoder does.
func (m *Monitor) addAudio() (err error) {
	m.audioUdp = NewUdpReader(m.relay.Context, m.conf.AudioRTPPort())
	if err = m.audioUdp.Listen(); err != nil {
		return
	}
	if m.conf.RTPPort <= 0 {
		port := m.audioUdp.Addr().(*net.UDPAddr).Port
		if m.opus, err = startOpus(m.relay.Context, m.conf.FFmpeg, port); err != nil {
			return
		}
	}
	_, err = m.relay.AddReadCloser(NewTrackReadCloser(m.audioUdp, webrtc.MimeTypeOpus), webrtc.MimeTypeOpus, lkAudioFrame)
	return
}

func (m *Monitor) closeAudio() {
	if m.opus != nil {
		if err := m.opus.Close(); err != nil {
			m.Println("opus encoder", err)
		}
		m.opus = nil
	}
	if m.audioUdp != nil {
		m.audioUdp.Close()
		m.audioUdp = nil
	}
}

// Audio takes the played PCM when the monitor encodes it itself; with a
// recorder preview the audio already arrives over RTP.
func (m *Monitor) Audio() io.Writer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.opus == nil {
		return nil
	}
	return m.opus
}

func (m *Monitor) encode(enc *x264.Encoder, frames chan *image.RGBA, done chan struct{}) {
	defer close(done)
	for img := range frames {
		if err := enc.Encode(img); err != nil {
			m.Println("encode", err)
			return
		}
	}
	if err := enc.Flush(); err != nil {
		m.Println("flush", err)
	}
}

// WriteFrame hands a copy to the encoder, dropping it if the previous one
// is still being encoded.
func (m *Monitor) WriteFrame(img *image.RGBA, at float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frames == nil {
		return
	}
	cp := &image.RGBA{
		Pix:    append([]byte(nil), img.Pix...),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	select {
	case m.frames <- cp:
	default:
	}
}

func (m *Monitor) End() {
	m.mu.Lock()
	defer m.mu.Unlock()

	// before the relay goes, so the encoder drains instead of being killed
	m.closeAudio()

	if m.frames != nil {
		close(m.frames)
		// the reader track may already be gone; unblock the encoder
		m.relay.Close()
		m.pw.CloseWithError(io.EOF)
		<-m.done
		m.enc.Close()
		m.frames, m.enc, m.pw = nil, nil, nil
	}
	if m.udp != nil {
		m.udp.Close()
		m.udp = nil
	}
	if m.relay != nil {
		m.relay.Close()
		m.relay = nil
	}
}

func (m *Monitor) Println(i ...interface{}) {
	log.Println("monitor", i)
}
