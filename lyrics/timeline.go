package lyrics

import (
	"fmt"
	"sort"
	"strings"
)

// LyricLine is one timed lyric event, Time in seconds from the start of the song.
type LyricLine struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// Timeline is sorted ascending by Time; equal times are simultaneous.
type Timeline []LyricLine

// ActiveIndex returns the greatest i with t[i].Time <= at, or -1.
func (t Timeline) ActiveIndex(at float64) int {
	// first index strictly after at
	i := sort.Search(len(t), func(i int) bool { return t[i].Time > at })
	return i - 1
}

// Window returns the indexes around active that exist in the timeline,
// in ascending order. active may be -1, in which case only lines after it
// are returned.
func (t Timeline) Window(active, before, after int) (idx []int) {
	for i := active - before; i <= active+after; i++ {
		if i >= 0 && i < len(t) {
			idx = append(idx, i)
		}
	}
	return
}

// Duration is the time of the last event.
func (t Timeline) Duration() float64 {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Time
}

func (t Timeline) Sorted() bool {
	for i := 1; i < len(t); i++ {
		if t[i-1].Time > t[i].Time {
			return false
		}
	}
	return true
}

// String renders the timeline back as LRC.
func (t Timeline) String() string {
	var sb strings.Builder
	for _, l := range t {
		m := int(l.Time) / 60
		s := l.Time - float64(m*60)
		sb.WriteString(fmt.Sprintf("[%02d:%06.3f]%s\n", m, s, l.Text))
	}
	return sb.String()
}

func (t Timeline) sort() {
	sort.SliceStable(t, func(i, j int) bool { return t[i].Time < t[j].Time })
}
