package lyrics

import (
	"github.com/alex2wong/how-is-your-song-sub000/defs"
)

// pairedFormat is the legacy layout: a bare mm:ss.cc line, then its lyric.
//
// It can't tell a broken line from a wrong guess about the format, so any
// irregularity is fatal regardless of Parser.Strict.
type pairedFormat struct{}

func (pairedFormat) Name() string { return "paired" }

func (pairedFormat) CanParse(in *Input) bool {
	if len(in.Lines) == 0 {
		return false
	}
	_, ok := parseClock(in.Lines[0].Text)
	return ok
}

func (f pairedFormat) Parse(in *Input, _ func(l rawLine, reason string) error) (tl Timeline, err error) {
	lines := in.Lines
	for i := 0; i < len(lines); i += 2 {
		stamp := lines[i]
		t, ok := parseClock(stamp.Text)
		if !ok {
			return nil, f.fail(stamp, "expected a mm:ss.cc timestamp")
		}
		if i+1 >= len(lines) {
			return nil, f.fail(stamp, "timestamp without lyric line")
		}
		text := lines[i+1]
		if _, isStamp := parseClock(text.Text); isStamp {
			return nil, f.fail(stamp, "timestamp without lyric line")
		}
		tl = append(tl, LyricLine{Time: t, Text: text.Text})
	}
	return
}

func (f pairedFormat) fail(l rawLine, reason string) error {
	return &defs.ParseError{Format: f.Name(), LineNo: l.No, Line: l.Text, Reason: reason}
}
