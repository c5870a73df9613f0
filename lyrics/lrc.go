package lyrics

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reLrcStamps = regexp.MustCompile(`^((?:\[\d{1,3}:\d{1,2}(?:[.:]\d{1,3})?\]\s*)+)(.*)$`)
	reLrcStamp  = regexp.MustCompile(`\[([^\]]*)\]`)
	reLrcTag    = regexp.MustCompile(`^\[([A-Za-z#]+):(.*)\]$`)
)

// lrcFormat: [mm:ss.cc]text, one or more stamps before the text.
type lrcFormat struct{}

func (lrcFormat) Name() string { return "lrc" }

func (lrcFormat) CanParse(in *Input) bool {
	for _, l := range in.Lines {
		if reLrcStamps.MatchString(l.Text) {
			return true
		}
	}
	return false
}

func (lrcFormat) Parse(in *Input, bad func(l rawLine, reason string) error) (tl Timeline, err error) {
	offset := 0 // ms
	for _, l := range in.Lines {
		if m := reLrcTag.FindStringSubmatch(l.Text); m != nil {
			if strings.EqualFold(m[1], "offset") {
				if ms, perr := strconv.Atoi(strings.TrimSpace(m[2])); perr == nil {
					offset = ms
				}
			}
			continue
		}
		m := reLrcStamps.FindStringSubmatch(l.Text)
		if m == nil {
			if err = bad(l, "no [mm:ss.cc] timestamp"); err != nil {
				return nil, err
			}
			continue
		}
		text := strings.TrimSpace(m[2])
		for _, s := range reLrcStamp.FindAllStringSubmatch(m[1], -1) {
			t, ok := parseClock(s[1])
			if !ok {
				if err = bad(l, "bad timestamp "+s[0]); err != nil {
					return nil, err
				}
				continue
			}
			tl = append(tl, LyricLine{Time: t, Text: text})
		}
	}

	// positive offset shows lyrics earlier
	if offset != 0 {
		for i := range tl {
			ms := int(math.Round(tl[i].Time*1000)) - offset
			if ms < 0 {
				ms = 0
			}
			tl[i].Time = seconds(ms)
		}
	}
	return
}
