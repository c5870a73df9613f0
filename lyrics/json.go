package lyrics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// jsonFormat: [{"timestamp":"00:08.60","text":"..."}], possibly wrapped in a
// JSON string or a markdown code fence as transcription services return it.
type jsonFormat struct{}

type jsonEntry struct {
	Timestamp interface{} `json:"timestamp"`
	Time      *float64    `json:"time,omitempty"`
	Text      string      `json:"text"`
}

func (jsonFormat) Name() string { return "json" }

func (jsonFormat) CanParse(in *Input) bool {
	_, err := unwrapJSON(in.Raw)
	return err == nil
}

func (f jsonFormat) Parse(in *Input, bad func(l rawLine, reason string) error) (tl Timeline, err error) {
	var entries []jsonEntry
	if entries, err = unwrapJSON(in.Raw); err != nil {
		return
	}
	for i, e := range entries {
		t, ok := e.seconds()
		if !ok {
			l := rawLine{No: i + 1, Text: fmt.Sprintf("%v %s", e.Timestamp, e.Text)}
			if err = bad(l, "bad timestamp"); err != nil {
				return nil, err
			}
			continue
		}
		tl = append(tl, LyricLine{Time: t, Text: strings.TrimSpace(e.Text)})
	}
	return
}

func (e jsonEntry) seconds() (float64, bool) {
	if e.Time != nil && *e.Time >= 0 {
		return *e.Time, true
	}
	switch v := e.Timestamp.(type) {
	case string:
		return parseClock(strings.Trim(strings.TrimSpace(v), "[]"))
	case float64:
		return v, v >= 0
	}
	return 0, false
}

func unwrapJSON(raw string) (entries []jsonEntry, err error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasPrefix(s, `"`) {
		var inner string
		if err = json.Unmarshal([]byte(s), &inner); err != nil {
			return
		}
		s = strings.TrimSpace(inner)
	}
	if !strings.HasPrefix(s, "[") {
		err = fmt.Errorf("not a json array")
		return
	}
	err = json.Unmarshal([]byte(s), &entries)
	return
}
