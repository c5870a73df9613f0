package lyrics

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// mm:ss, mm:ss.cc, mm:ss.mmm (":" accepted as the fraction separator too)
	reClock = regexp.MustCompile(`^(\d{1,3}):(\d{1,2})(?:[.:](\d{1,3}))?$`)
	// hh:mm:ss,ms
	reSrtClock = regexp.MustCompile(`^(\d{1,2}):(\d{1,2}):(\d{1,2})[,.](\d{1,3})$`)
)

// parseClock converts "mm:ss[.frac]" to seconds.
func parseClock(s string) (sec float64, ok bool) {
	m := reClock.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return
	}
	min, _ := strconv.Atoi(m[1])
	secs, _ := strconv.Atoi(m[2])
	if secs >= 60 {
		return
	}
	sec = seconds((min*60+secs)*1000 + millis(m[3]))
	ok = true
	return
}

func parseSrtClock(s string) (sec float64, ok bool) {
	m := reSrtClock.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	secs, _ := strconv.Atoi(m[3])
	if min >= 60 || secs >= 60 {
		return
	}
	sec = seconds((h*3600+min*60+secs)*1000 + millis(m[4]))
	ok = true
	return
}

// millis reads the digits as a decimal fraction: "6" 600, "60" 600, "601" 601
func millis(digits string) int {
	if digits == "" {
		return 0
	}
	digits = (digits + "00")[:3]
	ms, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return ms
}

// seconds divides once, so "08.601" is the same double as the literal 8.601.
func seconds(ms int) float64 {
	return float64(ms) / 1000
}
