package capture

import (
	"fmt"
	"sync"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
)

var transitions = map[defs.Status][]defs.Status{
	defs.Idle:       {defs.Loading},
	defs.Loading:    {defs.Rendering, defs.Failed, defs.Terminated},
	defs.Rendering:  {defs.Finalizing, defs.Failed, defs.Terminated},
	defs.Finalizing: {defs.Completed, defs.Failed},
}

// Machine is the lifecycle of one generation run.
type Machine struct {
	mu    sync.Mutex
	state defs.Status
}

func NewMachine() *Machine {
	return &Machine{state: defs.Idle}
}

func (m *Machine) State() defs.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// To moves to the given state, refusing anything the table doesn't allow.
func (m *Machine) To(s defs.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransition(m.state, s) {
		return fmt.Errorf("invalid transition %s -> %s", m.state, s)
	}
	m.state = s
	return nil
}

func CanTransition(from, to defs.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
