package capture

import (
	"io"
	"log"
	"sync"
)

// Graph fans the played PCM out. The tap is the recorder's audio input and
// its errors reach the player; extra outputs are dropped on their first error.
type Graph struct {
	mu     sync.Mutex
	tap    io.Writer
	outs   []io.Writer
	closed bool
}

func NewGraph(tap io.Writer) *Graph {
	return &Graph{tap: tap}
}

func (g *Graph) Connect(w io.Writer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || w == nil {
		return
	}
	g.outs = append(g.outs, w)
}

func (g *Graph) Disconnect(w io.Writer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, o := range g.outs {
		if o == w {
			g.outs = append(g.outs[:i], g.outs[i+1:]...)
			return
		}
	}
}

func (g *Graph) Write(p []byte) (n int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, io.ErrClosedPipe
	}
	if n, err = g.tap.Write(p); err != nil {
		return
	}
	kept := g.outs[:0]
	for _, o := range g.outs {
		if _, werr := o.Write(p[:n]); werr != nil {
			g.Println("output dropped", werr)
			continue
		}
		kept = append(kept, o)
	}
	g.outs = kept
	return
}

// Close detaches everything; later writes fail.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.outs = nil
}

func (g *Graph) Outputs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.outs)
}

func (g *Graph) Println(i ...interface{}) {
	log.Println("graph", i)
}
