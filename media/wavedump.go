package media

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WaveWriter stores the PCM it is given as a 16 bit stereo WAV file.
// It can hang off the audio graph to keep what the recorder heard.
type WaveWriter struct {
	mu     sync.Mutex
	f      *os.File
	enc    *wav.Encoder
	buf    audio.IntBuffer
	odd    []byte // half a sample left from the previous write
	closed bool
}

func CreateWave(path string) (w *WaveWriter, err error) {
	f, err := os.Create(path)
	if err != nil {
		return
	}
	w = &WaveWriter{
		f:   f,
		enc: wav.NewEncoder(f, SampleRate, 16, Channels, 1),
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
			SourceBitDepth: 16,
		},
	}
	return
}

func (w *WaveWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0, os.ErrClosed
	}
	n := len(p)
	if len(w.odd) > 0 {
		p = append(w.odd, p...)
		w.odd = nil
	}
	if len(p)%sampleSize != 0 {
		w.odd = append([]byte(nil), p[len(p)-1:]...)
		p = p[:len(p)-1]
	}
	data := w.buf.Data[:0]
	for i := 0; i+1 < len(p); i += sampleSize {
		data = append(data, int(int16(binary.LittleEndian.Uint16(p[i:]))))
	}
	w.buf.Data = data
	if err := w.enc.Write(&w.buf); err != nil {
		return 0, err
	}
	return n, nil
}

// Close finishes the header; the file is unusable before that.
func (w *WaveWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.enc.Close(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
