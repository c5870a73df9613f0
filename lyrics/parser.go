package lyrics

import (
	"log"
	"strings"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
)

type rawLine struct {
	No   int // 1-based line number in the original text
	Text string
}

// Input is the raw text plus its non-blank lines.
type Input struct {
	Raw   string
	Lines []rawLine
}

func newInput(raw string) *Input {
	raw = strings.TrimPrefix(raw, "\ufeff")
	in := &Input{Raw: raw}
	for i, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		in.Lines = append(in.Lines, rawLine{No: i + 1, Text: l})
	}
	return in
}

// Format is one recognizable timed-lyrics layout.
//
// bad is called for every line the format can't use; it returns a non-nil
// error when the caller wants parsing to stop there.
type Format interface {
	Name() string
	CanParse(in *Input) bool
	Parse(in *Input, bad func(l rawLine, reason string) error) (Timeline, error)
}

// DefaultFormats in detection priority order.
func DefaultFormats() []Format {
	return []Format{jsonFormat{}, lrcFormat{}, srtFormat{}, pairedFormat{}}
}

type Parser struct {
	Formats []Format
	// Strict makes every format fail on its first malformed line instead of
	// skipping it. The paired format is always strict.
	Strict bool
}

// Parse with the default formats, skipping malformed lines where the format allows it.
func Parse(raw string) (Timeline, error) {
	return (&Parser{}).Parse(raw)
}

func (p *Parser) Parse(raw string) (tl Timeline, err error) {
	in := newInput(raw)
	if len(in.Lines) == 0 {
		return Timeline{}, nil
	}

	formats := p.Formats
	if len(formats) == 0 {
		formats = DefaultFormats()
	}
	for _, f := range formats {
		if !f.CanParse(in) {
			continue
		}
		name := f.Name()
		bad := func(l rawLine, reason string) error {
			if p.Strict {
				return &defs.ParseError{Format: name, LineNo: l.No, Line: l.Text, Reason: reason}
			}
			p.Println(name, "skipping line", l.No, l.Text, reason)
			return nil
		}
		if tl, err = f.Parse(in, bad); err != nil {
			return nil, err
		}
		if tl == nil {
			tl = Timeline{}
		}
		tl.sort()
		return
	}

	first := in.Lines[0]
	err = &defs.ParseError{LineNo: first.No, Line: first.Text, Reason: "no known lyrics format matches"}
	return
}

func (p *Parser) Println(i ...interface{}) {
	log.Println("lyrics", i)
}
