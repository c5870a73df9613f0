package capture

import (
	"bufio"
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"time"
)

// Timeslice of the recorder's data events.
const Timeslice = 100 * time.Millisecond

var ErrNoProfile = errors.New("no supported container/codec combination")

// Profile is one container and codec pair the recorder can produce.
type Profile struct {
	Container  string // ffmpeg muxer
	Ext        string
	MimeType   string
	VideoCodec string // ffmpeg encoder names
	AudioCodec string
}

func (p Profile) String() string {
	return p.MimeType + "; codecs=" + p.VideoCodec + "," + p.AudioCodec
}

// Profiles in order of preference.
var Profiles = []Profile{
	{Container: "mp4", Ext: ".mp4", MimeType: "video/mp4", VideoCodec: "libx264", AudioCodec: "aac"},
	{Container: "webm", Ext: ".webm", MimeType: "video/webm", VideoCodec: "libvpx-vp9", AudioCodec: "libopus"},
	{Container: "webm", Ext: ".webm", MimeType: "video/webm", VideoCodec: "libvpx", AudioCodec: "libvorbis"},
	{Container: "matroska", Ext: ".mkv", MimeType: "video/x-matroska", VideoCodec: "mpeg4", AudioCodec: "libmp3lame"},
}

// Choose returns the first profile whose encoders are all available.
func Choose(available map[string]bool, profiles []Profile) (Profile, error) {
	for _, p := range profiles {
		if available[p.VideoCodec] && available[p.AudioCodec] {
			return p, nil
		}
	}
	return Profile{}, ErrNoProfile
}

// ParseEncoders reads the listing of `ffmpeg -encoders`.
func ParseEncoders(r io.Reader) map[string]bool {
	enc := make(map[string]bool)
	sc := bufio.NewScanner(r)
	body := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !body {
			// the legend ends with a dashed line
			body = strings.HasPrefix(line, "------")
			continue
		}
		f := strings.Fields(line)
		if len(f) < 2 || len(f[0]) != 6 {
			continue
		}
		enc[f[1]] = true
	}
	return enc
}

type Params struct {
	Width   int
	Height  int
	FPS     int
	Bitrate int
}

type RecorderEventKind int

const (
	DataAvailable RecorderEventKind = iota
	Stopped
)

type RecorderEvent struct {
	Kind RecorderEventKind
	Data []byte
	Err  error // on Stopped, when the encoder failed
}

// Recorder encodes composited frames and the audio tap into one container.
// Data arrives in timeslice chunks; Stopped is always the last event.
type Recorder interface {
	Start(timeslice time.Duration) error
	WriteFrame(img *image.RGBA, at float64) error
	Audio() io.Writer
	// Stop flushes and lets the muxer finish.
	Stop() error
	// Abort discards everything; it returns once the recorder is gone.
	Abort()
	Events() <-chan RecorderEvent
	Profile() Profile
}

type RecorderFactory interface {
	Negotiate(ctx context.Context) (Profile, error)
	New(ctx context.Context, p Profile, params Params) (Recorder, error)
}
