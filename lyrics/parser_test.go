package lyrics

import (
	"errors"
	"testing"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLrc(t *testing.T) {
	tl, err := Parse("[00:08.601]用夏天的雨水\n[00:15.000]才")
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.InDelta(t, 8.601, tl[0].Time, 1e-9)
	assert.Equal(t, "用夏天的雨水", tl[0].Text)
	assert.InDelta(t, 15.0, tl[1].Time, 1e-9)
	assert.Equal(t, "才", tl[1].Text)
}

func TestClockExact(t *testing.T) {
	cases := map[string]float64{
		"00:08.601": 8.601,
		"00:08.6":   8.6,
		"00:08.60":  8.6,
		"01:02":     62,
		"03:59.99":  239.99,
		"00:00.001": 0.001,
	}
	for in, want := range cases {
		got, ok := parseClock(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	got, ok := parseSrtClock("00:01:08,601")
	require.True(t, ok)
	assert.Equal(t, 68.601, got)

	tl, err := Parse("[00:08.601]a")
	require.NoError(t, err)
	assert.Equal(t, 8.601, tl[0].Time)
}

func TestParseLrcVariants(t *testing.T) {
	raw := `[ti:Song]
[ar:Someone]
[offset:500]

[01:02]no fraction
not a lyric line
[00:10.50][00:30.50]chorus
[00:05.xx]broken`
	tl, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, tl, 3)

	assert.InDelta(t, 10.0, tl[0].Time, 1e-9)
	assert.Equal(t, "chorus", tl[0].Text)
	assert.InDelta(t, 30.0, tl[1].Time, 1e-9)
	assert.InDelta(t, 61.5, tl[2].Time, 1e-9)
	assert.Equal(t, "no fraction", tl[2].Text)
}

func TestParseLrcStrict(t *testing.T) {
	p := &Parser{Strict: true}
	_, err := p.Parse("[00:01.00]a\nnot a lyric line\n[00:02.00]b")

	var pe *defs.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.LineNo)
	assert.Equal(t, "not a lyric line", pe.Line)
}

func TestParseJSON(t *testing.T) {
	cases := map[string]string{
		"plain":   `[{"timestamp":"00:20.00","text":"b"},{"timestamp":"00:08.60","text":"a"}]`,
		"quoted":  `"[{\"timestamp\":\"00:20.00\",\"text\":\"b\"},{\"timestamp\":\"00:08.60\",\"text\":\"a\"}]"`,
		"fenced":  "```json\n[{\"timestamp\":\"[00:20.00]\",\"text\":\"b\"},{\"timestamp\":\"00:08.60\",\"text\":\"a\"}]\n```",
		"numeric": `[{"time":20,"text":"b"},{"timestamp":8.6,"text":"a"}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			tl, err := Parse(raw)
			require.NoError(t, err)
			require.Len(t, tl, 2)
			assert.InDelta(t, 8.6, tl[0].Time, 1e-9)
			assert.Equal(t, "a", tl[0].Text)
			assert.InDelta(t, 20.0, tl[1].Time, 1e-9)
		})
	}
}

func TestParseJSONSkipsBadEntries(t *testing.T) {
	tl, err := Parse(`[{"timestamp":"soon","text":"x"},{"timestamp":"00:01.00","text":"y"}]`)
	require.NoError(t, err)
	require.Len(t, tl, 1)
	assert.Equal(t, "y", tl[0].Text)
}

func TestParseSrt(t *testing.T) {
	raw := `1
00:00:01,500 --> 00:00:03,000
first line
continued

2
00:01:02,250 --> 00:01:05,000
second

3
00:0x:00,000 --> 00:00:09,000
dropped`
	tl, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.InDelta(t, 1.5, tl[0].Time, 1e-9)
	assert.Equal(t, "first line continued", tl[0].Text)
	assert.InDelta(t, 62.25, tl[1].Time, 1e-9)
	assert.Equal(t, "second", tl[1].Text)
}

func TestParsePaired(t *testing.T) {
	tl, err := Parse("00:15.00\nlater\n00:08.60\nearlier\n")
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.Equal(t, "earlier", tl[0].Text)
	assert.InDelta(t, 8.6, tl[0].Time, 1e-9)
}

func TestParsePairedIsStrict(t *testing.T) {
	for name, raw := range map[string]string{
		"dangling":      "00:08.60\nhello\n00:10.00",
		"missing pair":  "00:08.60\n00:09.00\nhello",
		"bad timestamp": "00:08.60\nhello\n0a:10.00\nworld",
	} {
		t.Run(name, func(t *testing.T) {
			tl, err := Parse(raw)
			assert.Nil(t, tl)

			var pe *defs.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, "paired", pe.Format)
			assert.NotEmpty(t, pe.Line)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	tl, err := Parse(" \n\n\t\n")
	require.NoError(t, err)
	assert.NotNil(t, tl)
	assert.Len(t, tl, 0)
}

func TestParseUnknown(t *testing.T) {
	_, err := Parse("just some words\nwithout any timing")
	var pe *defs.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.LineNo)
}

func TestParsedTimelineIsSorted(t *testing.T) {
	inputs := []string{
		"[00:30.00]c\n[00:10.00]a\n[00:20.00]b\n[00:10.00]a2",
		`[{"timestamp":"01:00.00","text":"z"},{"timestamp":"00:00.10","text":"y"}]`,
		"2\n00:00:09,000 --> 00:00:10,000\nb\n1\n00:00:01,000 --> 00:00:02,000\na",
		"00:09.00\nb\n00:01.00\na",
	}
	for _, raw := range inputs {
		tl, err := Parse(raw)
		require.NoError(t, err)
		assert.True(t, tl.Sorted(), raw)
	}
}

func TestCustomFormatOrder(t *testing.T) {
	p := &Parser{Formats: []Format{pairedFormat{}}}
	_, err := p.Parse("[00:01.00]lrc only")
	assert.Error(t, err)
}
