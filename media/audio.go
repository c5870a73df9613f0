package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/go-audio/wav"
	"github.com/zaf/resample"
)

const (
	SampleRate = 48000
	Channels   = 2
	sampleSize = 2 // s16le
)

var (
	ErrNoAudio     = errors.New("no audio stream")
	ErrInvalidWave = errors.New("invalid wav file")
)

// AudioResource is the decoded song: interleaved s16le PCM at SampleRate/Channels.
type AudioResource struct {
	Name   string
	PCM    []byte
	Handle *Handle
}

func NewAudioResource(name string, pcm []byte) *AudioResource {
	return &AudioResource{Name: name, PCM: pcm}
}

func BytesPerSecond() int {
	return SampleRate * Channels * sampleSize
}

func (a *AudioResource) Duration() float64 {
	return float64(len(a.PCM)) / float64(BytesPerSecond())
}

// Decoder turns audio files into AudioResources.
type Decoder struct {
	FFmpeg  string
	FFprobe string
}

func (d *Decoder) LoadAudio(ctx context.Context, h *Handle) (a *AudioResource, err error) {
	if h == nil {
		return nil, &defs.ResourceLoadError{Name: "audio", Err: os.ErrNotExist}
	}
	defer func() {
		if err != nil {
			err = &defs.ResourceLoadError{Name: h.Name, Err: err}
		}
	}()

	var (
		pcm      []byte
		rate     int
		channels int
	)
	if isWave(h) {
		pcm, rate, channels, err = decodeWave(h.Path)
	} else {
		pcm, rate, channels, err = d.decodeFFmpeg(ctx, h.Path)
	}
	if err != nil {
		return
	}
	if pcm, err = toStereo(pcm, channels); err != nil {
		return
	}
	if rate != SampleRate {
		d.Println("resampling", h.Name, rate, "->", SampleRate)
		if pcm, err = resamplePCM(pcm, rate, SampleRate); err != nil {
			return
		}
	}
	if len(pcm) < Channels*sampleSize {
		err = ErrNoAudio
		return
	}
	a = &AudioResource{Name: h.Name, PCM: pcm, Handle: h}
	return
}

func isWave(h *Handle) bool {
	switch h.MimeType {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	}
	return h.Ext() == ".wav"
}

func decodeWave(path string) (pcm []byte, rate, channels int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		err = ErrInvalidWave
		return
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return
	}
	rate = int(dec.SampleRate)
	channels = int(dec.NumChans)
	depth := int(dec.BitDepth)
	if rate <= 0 || channels <= 0 {
		err = ErrInvalidWave
		return
	}

	pcm = make([]byte, len(buf.Data)*sampleSize)
	for i, v := range buf.Data {
		var s int
		switch {
		case depth == 8:
			s = (v - 128) << 8
		case depth > 16:
			s = v >> uint(depth-16)
		default:
			s = v
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s)))
	}
	return
}

type probeResult struct {
	Streams []struct {
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

func (d *Decoder) decodeFFmpeg(ctx context.Context, path string) (pcm []byte, rate, channels int, err error) {
	out, err := exec.CommandContext(ctx, d.ffprobe(), "-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "json", path).Output()
	if err != nil {
		err = fmt.Errorf("ffprobe: %w", err)
		return
	}
	var pr probeResult
	if err = json.Unmarshal(out, &pr); err != nil {
		return
	}
	if len(pr.Streams) == 0 {
		err = ErrNoAudio
		return
	}
	if rate, err = strconv.Atoi(pr.Streams[0].SampleRate); err != nil || rate <= 0 {
		err = fmt.Errorf("bad sample rate %q", pr.Streams[0].SampleRate)
		return
	}

	// keep the native rate, conversion is done by the resampler
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.ffmpeg(), "-v", "error", "-i", path,
		"-map", "0:a:0", "-f", "s16le", "-acodec", "pcm_s16le", "-ac", strconv.Itoa(Channels), "-")
	cmd.Stderr = &stderr
	if pcm, err = cmd.Output(); err != nil {
		err = fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(stderr.String()))
		return
	}
	channels = Channels
	return
}

func (d *Decoder) ffmpeg() string {
	if d.FFmpeg == "" {
		return "ffmpeg"
	}
	return d.FFmpeg
}

func (d *Decoder) ffprobe() string {
	if d.FFprobe == "" {
		return "ffprobe"
	}
	return d.FFprobe
}

func (d *Decoder) Println(i ...interface{}) {
	log.Println("audio", i)
}

// toStereo duplicates mono and keeps the first two channels of anything wider.
func toStereo(pcm []byte, channels int) ([]byte, error) {
	switch {
	case channels == Channels:
		return pcm, nil
	case channels <= 0:
		return nil, ErrInvalidWave
	}
	frame := channels * sampleSize
	n := len(pcm) / frame
	out := make([]byte, n*Channels*sampleSize)
	for i := 0; i < n; i++ {
		l := pcm[i*frame : i*frame+sampleSize]
		r := l
		if channels > 1 {
			r = pcm[i*frame+sampleSize : i*frame+2*sampleSize]
		}
		copy(out[i*4:], l)
		copy(out[i*4+2:], r)
	}
	return out, nil
}

func resamplePCM(pcm []byte, from, to int) ([]byte, error) {
	var out bytes.Buffer
	res, err := resample.New(&out, float64(from), float64(to), Channels, resample.I16, resample.HighQ)
	if err != nil {
		return nil, err
	}
	if _, err = res.Write(pcm); err != nil {
		res.Close()
		return nil, err
	}
	if err = res.Close(); err != nil {
		return nil, err
	}
	// whole frames only
	b := out.Bytes()
	return b[:len(b)/(Channels*sampleSize)*(Channels*sampleSize)], nil
}
