package defs

import "fmt"

type Status int

const (
	Idle Status = iota
	Loading
	Rendering
	Finalizing
	Completed
	Failed
	Terminated
)

var statusNames = [...]string{"idle", "loading", "rendering", "finalizing", "completed", "failed", "terminated"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Active is true while a run owns a recorder, loop or audio graph.
func (s Status) Active() bool {
	return s == Loading || s == Rendering || s == Finalizing
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Progress is pushed on every tick and every state transition.
type Progress struct {
	Status   Status  `json:"status"`
	Fraction float64 `json:"progress"`
	Message  string  `json:"message"`
}

// Describe renders a human readable line for progress UIs.
func Describe(s Status, fraction float64, err error) string {
	switch s {
	case Idle:
		return "Ready"
	case Loading:
		return "Loading audio and background..."
	case Rendering:
		return fmt.Sprintf("Rendering video %d%%", int(fraction*100+0.5))
	case Finalizing:
		return "Finalizing video file..."
	case Completed:
		return "Video ready"
	case Failed:
		if err != nil {
			return "Generation failed: " + err.Error()
		}
		return "Generation failed"
	case Terminated:
		return "Generation stopped"
	}
	return s.String()
}
