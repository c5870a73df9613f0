package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlesRevokeOnce(t *testing.T) {
	hs, err := NewHandles(t.TempDir())
	require.NoError(t, err)

	h, err := hs.Create("cover.png", "image/png", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, 1, hs.Live())
	assert.FileExists(t, h.Path)
	assert.Equal(t, ".png", filepath.Ext(h.Path))

	assert.True(t, hs.Revoke(h))
	assert.False(t, hs.Revoke(h))
	assert.Equal(t, 0, hs.Live())
	assert.NoFileExists(t, h.Path)
}

func TestHandlesRevokeAll(t *testing.T) {
	dir := t.TempDir()
	hs, err := NewHandles(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := hs.Create("a.mp3", "audio/mpeg", strings.NewReader("x"))
		require.NoError(t, err)
	}
	out := filepath.Join(dir, "artifact.mp4")
	require.NoError(t, os.WriteFile(out, []byte("mp4"), 0644))
	hs.Adopt("song.mp4", "video/mp4", out)

	assert.Equal(t, 4, hs.RevokeAll())
	assert.Equal(t, 0, hs.Live())
	assert.NoFileExists(t, out)
}

func TestLoadBackgroundImage(t *testing.T) {
	hs, err := NewHandles(t.TempDir())
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	h, err := hs.Create("bg.png", "image/png", &buf)
	require.NoError(t, err)

	a, err := LoadBackground(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, KindImage, a.Kind)
	assert.Equal(t, image.Pt(40, 30), a.Size())
	assert.NotNil(t, a.Frame(12.5))
	assert.Equal(t, a.Frame(0), a.Frame(100))
	assert.NoError(t, a.Close())
}

func TestLoadBackgroundUnsupported(t *testing.T) {
	hs, err := NewHandles(t.TempDir())
	require.NoError(t, err)

	h, err := hs.Create("notes.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)

	_, err = LoadBackground(context.Background(), h)
	var rle *defs.ResourceLoadError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "notes.txt", rle.Name)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLoadBackgroundCorrupt(t *testing.T) {
	hs, err := NewHandles(t.TempDir())
	require.NoError(t, err)

	h, err := hs.Create("broken.png", "image/png", strings.NewReader("definitely not a png"))
	require.NoError(t, err)

	_, err = LoadBackground(context.Background(), h)
	var rle *defs.ResourceLoadError
	assert.True(t, errors.As(err, &rle))
}

func writeWave(t *testing.T, path string, rate, chans int, samples []int) {
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, chans, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: chans, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

func TestLoadAudioWaveMono(t *testing.T) {
	dir := t.TempDir()
	hs, err := NewHandles(dir)
	require.NoError(t, err)

	samples := make([]int, SampleRate/10) // 100ms mono
	for i := range samples {
		samples[i] = i % 1000
	}
	src := filepath.Join(dir, "src.wav")
	writeWave(t, src, SampleRate, 1, samples)

	h := hs.Adopt("song.wav", "audio/wav", src)
	a, err := (&Decoder{}).LoadAudio(context.Background(), h)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, a.Duration(), 1e-6)
	require.Len(t, a.PCM, len(samples)*4)
	// left == right == source
	assert.Equal(t, a.PCM[4*7:4*7+2], a.PCM[4*7+2:4*7+4])
	assert.Equal(t, []byte{7, 0}, a.PCM[4*7:4*7+2])
}

func TestLoadAudioInvalid(t *testing.T) {
	hs, err := NewHandles(t.TempDir())
	require.NoError(t, err)

	h, err := hs.Create("song.wav", "audio/wav", strings.NewReader("RIFF...."))
	require.NoError(t, err)

	_, err = (&Decoder{}).LoadAudio(context.Background(), h)
	var rle *defs.ResourceLoadError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "song.wav", rle.Name)
}

func TestPlayerPlaysToEnd(t *testing.T) {
	res := NewAudioResource("tone", make([]byte, BytesPerSecond()/10)) // 100ms
	p := NewPlayer(res)
	p.Block = 5 * time.Millisecond

	var out bytes.Buffer
	require.NoError(t, p.Play(&out))
	assert.ErrorIs(t, p.Play(&out), ErrPlaying)

	select {
	case ev := <-p.Events():
		assert.Equal(t, PlayerEnded, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("player never ended")
	}
	assert.Equal(t, len(res.PCM), out.Len())
	assert.InDelta(t, 0.1, p.Position(), 1e-9)
	assert.ErrorIs(t, p.Play(&out), ErrExhausted)

	p.Seek(0)
	assert.Equal(t, 0.0, p.Position())
}

type failingWriter struct{}

func (failingWriter) Write(b []byte) (int, error) { return 0, errors.New("device gone") }

func TestPlayerReportsWriteError(t *testing.T) {
	p := NewPlayer(NewAudioResource("tone", make([]byte, BytesPerSecond())))
	require.NoError(t, p.Play(failingWriter{}))

	select {
	case ev := <-p.Events():
		assert.Equal(t, PlayerError, ev.Kind)
		assert.Error(t, ev.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("no error event")
	}
	assert.Equal(t, 0.0, p.Position())
}

func TestPlayerPause(t *testing.T) {
	p := NewPlayer(NewAudioResource("tone", make([]byte, BytesPerSecond()*10)))
	p.Block = 5 * time.Millisecond

	var out bytes.Buffer
	require.NoError(t, p.Play(&out))
	time.Sleep(30 * time.Millisecond)
	p.Pause()
	p.Pause()

	pos := p.Position()
	assert.Greater(t, pos, 0.0)
	assert.Less(t, pos, 10.0)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, pos, p.Position())
}

func TestWaveWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.wav")
	w, err := CreateWave(path)
	require.NoError(t, err)

	// 10ms of stereo ramp, split mid sample on purpose
	pcm := make([]byte, SampleRate/100*Channels*sampleSize)
	for i := 0; i < len(pcm)/2; i++ {
		v := int16(i * 3)
		pcm[2*i] = byte(v)
		pcm[2*i+1] = byte(uint16(v) >> 8)
	}
	_, err = w.Write(pcm[:101])
	require.NoError(t, err)
	_, err = w.Write(pcm[101:])
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	got, rate, chans, err := decodeWave(path)
	require.NoError(t, err)
	assert.Equal(t, SampleRate, rate)
	assert.Equal(t, Channels, chans)
	assert.Equal(t, pcm, got)

	_, err = w.Write(pcm)
	assert.Error(t, err)
}
