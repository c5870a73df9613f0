package capture

import (
	"time"

	"github.com/alex2wong/how-is-your-song-sub000/media"
)

// Ticker stands for the display refresh: one tick, one frame.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFunc func(fps int) Ticker

type realTicker struct {
	*time.Ticker
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func NewTicker(fps int) Ticker {
	if fps <= 0 {
		fps = 30
	}
	return realTicker{time.NewTicker(time.Second / time.Duration(fps))}
}

type Tick struct {
	Index    int
	At       float64 // playback clock, seconds
	Progress float64
	Ended    bool // the last tick of the run
}

// Frames turns ticks into clock samples of a player. It can't be rewound:
// once the ended tick was handed out, Next keeps returning false.
type Frames struct {
	player media.Player

	index    int
	progress float64
	ended    bool
	done     bool
}

func NewFrames(p media.Player) *Frames {
	return &Frames{player: p}
}

// MarkEnded is called on the player's ended event; the next tick is the last.
func (f *Frames) MarkEnded() {
	f.ended = true
}

func (f *Frames) Next() (t Tick, ok bool) {
	if f.done {
		return
	}
	at := f.player.Position()
	dur := f.player.Duration()

	t = Tick{Index: f.index, At: at}
	f.index++

	if f.ended || at >= dur {
		f.done = true
		f.progress = 1
		t.Progress, t.Ended = 1, true
		return t, true
	}

	p := 0.0
	if dur > 0 {
		p = at / dur
	}
	// the clock never runs backwards while playing, but progress must not either
	if p < f.progress {
		p = f.progress
	}
	if p > 1 {
		p = 1
	}
	f.progress = p
	t.Progress = p
	return t, true
}

func (f *Frames) Done() bool {
	return f.done
}
