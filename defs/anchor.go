package defs

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

type HAlign int

const (
	AlignLeft HAlign = iota
	AlignCenter
	AlignRight
)

type VAlign int

const (
	AlignTop VAlign = iota
	AlignMiddle
	AlignBottom
)

// ParseAnchor parses "<h>-<v>" title positions, h in left|center|right and
// v in top|center|bottom. A bare "center" means center-center.
func ParseAnchor(s string) (h HAlign, v VAlign, err error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "-", 2)
	if len(parts) == 1 {
		parts = append(parts, "center")
	}
	switch parts[0] {
	case "left":
		h = AlignLeft
	case "center":
		h = AlignCenter
	case "right":
		h = AlignRight
	default:
		err = fmt.Errorf("bad horizontal anchor %q", parts[0])
		return
	}
	switch parts[1] {
	case "top":
		v = AlignTop
	case "center":
		v = AlignMiddle
	case "bottom":
		v = AlignBottom
	default:
		err = fmt.Errorf("bad vertical anchor %q", parts[1])
	}
	return
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string) (c color.NRGBA, err error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		err = fmt.Errorf("bad color %q", s)
		return
	}
	v, perr := strconv.ParseUint(hex, 16, 32)
	if perr != nil {
		err = fmt.Errorf("bad color %q", s)
		return
	}
	c = color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	return
}
