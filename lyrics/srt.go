package lyrics

import (
	"regexp"
	"strings"
)

var (
	reSrtRange = regexp.MustCompile(`^(\S+)\s*-->\s*(\S+)`)
	reSrtIndex = regexp.MustCompile(`^\d+$`)
)

// srtFormat: index, "hh:mm:ss,ms --> hh:mm:ss,ms", text. Only the start time is kept.
type srtFormat struct{}

func (srtFormat) Name() string { return "srt" }

func (srtFormat) CanParse(in *Input) bool {
	for _, l := range in.Lines {
		if m := reSrtRange.FindStringSubmatch(l.Text); m != nil {
			if _, ok := parseSrtClock(m[1]); ok {
				return true
			}
		}
	}
	return false
}

func (srtFormat) Parse(in *Input, bad func(l rawLine, reason string) error) (tl Timeline, err error) {
	lines := in.Lines
	isRange := func(i int) bool {
		return i < len(lines) && strings.Contains(lines[i].Text, "-->")
	}
	isIndex := func(i int) bool {
		return i < len(lines) && reSrtIndex.MatchString(lines[i].Text) && isRange(i+1)
	}

	for i := 0; i < len(lines); i++ {
		l := lines[i]
		if isIndex(i) {
			continue
		}
		if !isRange(i) {
			if err = bad(l, "text outside of a subtitle block"); err != nil {
				return nil, err
			}
			continue
		}

		// collect the block text first so a bad range drops the whole block
		var text []string
		j := i + 1
		for ; j < len(lines) && !isRange(j) && !isIndex(j); j++ {
			text = append(text, lines[j].Text)
		}

		var start float64
		ok := false
		if m := reSrtRange.FindStringSubmatch(l.Text); m != nil {
			start, ok = parseSrtClock(m[1])
		}
		if !ok {
			if err = bad(l, "bad time range"); err != nil {
				return nil, err
			}
		} else {
			tl = append(tl, LyricLine{Time: start, Text: strings.Join(text, " ")})
		}
		i = j - 1
	}
	return
}
