package media

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// audio block written per pacing step, same as the livekit audio frame
	playBlock = 20 * time.Millisecond
)

var (
	ErrPlaying   = errors.New("already playing")
	ErrNoOutput  = errors.New("no audio output")
	ErrExhausted = errors.New("nothing left to play")
)

type PlayerEventKind int

const (
	PlayerEnded PlayerEventKind = iota
	PlayerError
)

type PlayerEvent struct {
	Kind PlayerEventKind
	Err  error
}

// Player drives an AudioResource in real time. Position is the playback
// clock every other component syncs to.
type Player interface {
	Play(out io.Writer) error
	Pause()
	Seek(sec float64)
	Position() float64
	Duration() float64
	Events() <-chan PlayerEvent
}

// PCMPlayer writes the resource into out in blocks, paced by the wall clock.
// The position only advances by what out accepted, so the clock and the
// recorded audio can't drift apart.
type PCMPlayer struct {
	res   *AudioResource
	Block time.Duration

	mu      sync.Mutex
	pos     int64 // bytes delivered
	stop    chan struct{}
	done    chan struct{}
	events  chan PlayerEvent
	playing bool
}

func NewPlayer(res *AudioResource) *PCMPlayer {
	return &PCMPlayer{
		res:    res,
		Block:  playBlock,
		events: make(chan PlayerEvent, 4),
	}
}

func (p *PCMPlayer) Play(out io.Writer) error {
	if out == nil {
		return ErrNoOutput
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing {
		return ErrPlaying
	}
	if atomic.LoadInt64(&p.pos) >= int64(len(p.res.PCM)) {
		return ErrExhausted
	}
	p.playing = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(out, p.stop, p.done)
	return nil
}

func (p *PCMPlayer) run(out io.Writer, stop, done chan struct{}) {
	defer close(done)

	bps := int64(BytesPerSecond())
	frame := int64(Channels * sampleSize)
	start := atomic.LoadInt64(&p.pos)
	t0 := time.Now()

	t := time.NewTicker(p.Block)
	defer t.Stop()

	for {
		elapsed := time.Since(t0)
		due := start + int64(elapsed.Seconds()*float64(bps))/frame*frame
		// one block ahead, so the consumer never starves
		due += int64(p.Block.Seconds()*float64(bps)) / frame * frame
		if total := int64(len(p.res.PCM)); due > total {
			due = total
		}

		pos := atomic.LoadInt64(&p.pos)
		if due > pos {
			n, err := out.Write(p.res.PCM[pos:due])
			atomic.AddInt64(&p.pos, int64(n))
			if err != nil {
				p.finish(PlayerEvent{Kind: PlayerError, Err: err})
				return
			}
		}
		if atomic.LoadInt64(&p.pos) >= int64(len(p.res.PCM)) {
			p.finish(PlayerEvent{Kind: PlayerEnded})
			return
		}

		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

func (p *PCMPlayer) finish(ev PlayerEvent) {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()

	select {
	case p.events <- ev:
	default:
		p.Println("event dropped", ev.Kind)
	}
}

// Pause stops writing; it returns once the writer goroutine is gone.
func (p *PCMPlayer) Pause() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	if !p.playing || stop == nil {
		p.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	p.playing = false
	close(stop)
	p.stop = nil
	p.mu.Unlock()
	<-done
}

// Seek only applies while paused.
func (p *PCMPlayer) Seek(sec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	frame := int64(Channels * sampleSize)
	b := int64(sec*float64(BytesPerSecond())) / frame * frame
	if b < 0 {
		b = 0
	}
	if total := int64(len(p.res.PCM)); b > total {
		b = total
	}
	atomic.StoreInt64(&p.pos, b)
}

func (p *PCMPlayer) Position() float64 {
	return float64(atomic.LoadInt64(&p.pos)) / float64(BytesPerSecond())
}

func (p *PCMPlayer) Duration() float64 {
	return p.res.Duration()
}

func (p *PCMPlayer) Events() <-chan PlayerEvent {
	return p.events
}

func (p *PCMPlayer) Println(i ...interface{}) {
	log.Println("player", i)
}
