package relay

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/alex2wong/how-is-your-song-sub000/media"
)

// opusEncoder turns the played s16le PCM into opus RTP on a local port,
// where a UdpReader picks it up for the audio track.
type opusEncoder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu     sync.Mutex
	closed bool
}

func opusArgs(port int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le", "-ar", strconv.Itoa(media.SampleRate), "-ac", strconv.Itoa(media.Channels), "-i", "pipe:0",
		"-c:a", "libopus", "-b:a", "96k", "-application", "lowdelay", "-frame_duration", "20",
		"-f", "rtp", fmt.Sprintf("rtp://127.0.0.1:%d", port),
	}
}

func startOpus(ctx context.Context, bin string, port int) (e *opusEncoder, err error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	e = &opusEncoder{cmd: exec.CommandContext(ctx, bin, opusArgs(port)...)}
	if e.stdin, err = e.cmd.StdinPipe(); err != nil {
		return nil, err
	}
	if err = e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	return e, nil
}

func (e *opusEncoder) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, io.ErrClosedPipe
	}
	return e.stdin.Write(p)
}

// Close ends the input and waits for the encoder to drain.
func (e *opusEncoder) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.stdin.Close()
	e.mu.Unlock()
	return e.cmd.Wait()
}
