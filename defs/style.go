package defs

import (
	"fmt"
	"image"
)

type Aspect string

const (
	Landscape169 Aspect = "16:9"
	Landscape43  Aspect = "4:3"
	Square       Aspect = "1:1"
	Portrait916  Aspect = "9:16"
)

var resolutions = map[Aspect]image.Point{
	Landscape169: {1280, 720},
	Landscape43:  {1024, 768},
	Square:       {1080, 1080},
	Portrait916:  {720, 1280},
}

type LyricPosition string

const (
	LyricLeft   LyricPosition = "left"
	LyricRight  LyricPosition = "right"
	LyricCenter LyricPosition = "center"
	LyricBottom LyricPosition = "bottom"
)

type DisplayMode string

const (
	MultiLine  DisplayMode = "multi"
	SingleLine DisplayMode = "single"
)

type Fit string

const (
	FitCover   Fit = "cover"
	FitContain Fit = "contain"
)

type Shape string

const (
	ShapeRounded Shape = "rounded"
	ShapeCircle  Shape = "circle"
)

type SizeTier string

const (
	SizeSmall  SizeTier = "small"
	SizeMedium SizeTier = "medium"
	SizeLarge  SizeTier = "large"
	SizeXLarge SizeTier = "xlarge"
)

// fraction of the surface height
var sizeTiers = map[SizeTier]float64{
	SizeSmall:  0.25,
	SizeMedium: 0.35,
	SizeLarge:  0.5,
	SizeXLarge: 0.65,
}

// StyleConfig is the whole visual configuration of one generation run.
// It is passed by value and never mutated once a run has started; the same
// record is what the settings store persists between sessions.
type StyleConfig struct {
	Aspect         Aspect        `yaml:"aspect" json:"aspect"`
	LyricPosition  LyricPosition `yaml:"lyric_position" json:"lyricPosition"`
	Mask           bool          `yaml:"mask" json:"mask"`
	Stroke         bool          `yaml:"stroke" json:"stroke"`
	FontSize       float64       `yaml:"font_size" json:"fontSize"`
	PrimaryColor   string        `yaml:"primary_color" json:"primaryColor"`
	SecondaryColor string        `yaml:"secondary_color" json:"secondaryColor"`
	StrokeColor    string        `yaml:"stroke_color" json:"strokeColor"`
	DisplayMode    DisplayMode   `yaml:"display_mode" json:"displayMode"`

	Title         string  `yaml:"title" json:"title"`
	Author        string  `yaml:"author" json:"author"`
	TitleFontSize float64 `yaml:"title_font_size" json:"titleFontSize"`
	TitleMargin   float64 `yaml:"title_margin" json:"titleMargin"`
	TitlePosition string  `yaml:"title_position" json:"titlePosition"` // e.g. "left-top"
	TitleColor    string  `yaml:"title_color" json:"titleColor"`
	AuthorColor   string  `yaml:"author_color" json:"authorColor"`

	BackgroundFit Fit `yaml:"background_fit" json:"backgroundFit"`

	ForegroundShape  Shape    `yaml:"foreground_shape" json:"foregroundShape"`
	ForegroundSize   SizeTier `yaml:"foreground_size" json:"foregroundSize"`
	ForegroundOffset float64  `yaml:"foreground_offset" json:"foregroundOffset"` // fraction of height
	ForegroundRotate bool     `yaml:"foreground_rotate" json:"foregroundRotate"`

	Bitrate int `yaml:"bitrate" json:"bitrate"` // bits per second
	FPS     int `yaml:"fps" json:"fps"`
}

func DefaultStyle() StyleConfig {
	return StyleConfig{
		Aspect:          Landscape169,
		LyricPosition:   LyricBottom,
		Mask:            true,
		Stroke:          false,
		FontSize:        48,
		PrimaryColor:    "#ffffff",
		SecondaryColor:  "#b0b0b0",
		StrokeColor:     "#000000",
		DisplayMode:     MultiLine,
		TitleFontSize:   40,
		TitleMargin:     40,
		TitlePosition:   "left-top",
		TitleColor:      "#ffffff",
		AuthorColor:     "#dddddd",
		BackgroundFit:   FitCover,
		ForegroundShape: ShapeRounded,
		ForegroundSize:  SizeMedium,
		Bitrate:         4000000,
		FPS:             30,
	}
}

// Normalize returns a copy with every zero field replaced by its default.
func (s StyleConfig) Normalize() StyleConfig {
	d := DefaultStyle()
	if s.Aspect == "" {
		s.Aspect = d.Aspect
	}
	if s.LyricPosition == "" {
		s.LyricPosition = d.LyricPosition
	}
	if s.FontSize <= 0 {
		s.FontSize = d.FontSize
	}
	if s.PrimaryColor == "" {
		s.PrimaryColor = d.PrimaryColor
	}
	if s.SecondaryColor == "" {
		s.SecondaryColor = d.SecondaryColor
	}
	if s.StrokeColor == "" {
		s.StrokeColor = d.StrokeColor
	}
	if s.DisplayMode == "" {
		s.DisplayMode = d.DisplayMode
	}
	if s.TitleFontSize <= 0 {
		s.TitleFontSize = d.TitleFontSize
	}
	if s.TitleMargin < 0 {
		s.TitleMargin = 0
	}
	if s.TitlePosition == "" {
		s.TitlePosition = d.TitlePosition
	}
	if s.TitleColor == "" {
		s.TitleColor = d.TitleColor
	}
	if s.AuthorColor == "" {
		s.AuthorColor = d.AuthorColor
	}
	if s.BackgroundFit == "" {
		s.BackgroundFit = d.BackgroundFit
	}
	if s.ForegroundShape == "" {
		s.ForegroundShape = d.ForegroundShape
	}
	if s.ForegroundSize == "" {
		s.ForegroundSize = d.ForegroundSize
	}
	if s.Bitrate <= 0 {
		s.Bitrate = d.Bitrate
	}
	if s.FPS <= 0 {
		s.FPS = d.FPS
	}
	return s
}

func (s StyleConfig) Validate() error {
	if _, ok := resolutions[s.Aspect]; !ok {
		return &ValidationError{Field: "aspect", Reason: fmt.Sprintf("unknown aspect %q", s.Aspect)}
	}
	switch s.LyricPosition {
	case LyricLeft, LyricRight, LyricCenter, LyricBottom:
	default:
		return &ValidationError{Field: "lyric_position", Reason: fmt.Sprintf("unknown position %q", s.LyricPosition)}
	}
	switch s.DisplayMode {
	case MultiLine, SingleLine:
	default:
		return &ValidationError{Field: "display_mode", Reason: fmt.Sprintf("unknown mode %q", s.DisplayMode)}
	}
	if _, _, err := ParseAnchor(s.TitlePosition); err != nil {
		return &ValidationError{Field: "title_position", Reason: err.Error()}
	}
	switch s.BackgroundFit {
	case FitCover, FitContain:
	default:
		return &ValidationError{Field: "background_fit", Reason: fmt.Sprintf("unknown fit %q", s.BackgroundFit)}
	}
	switch s.ForegroundShape {
	case ShapeRounded, ShapeCircle:
	default:
		return &ValidationError{Field: "foreground_shape", Reason: fmt.Sprintf("unknown shape %q", s.ForegroundShape)}
	}
	if _, ok := sizeTiers[s.ForegroundSize]; !ok {
		return &ValidationError{Field: "foreground_size", Reason: fmt.Sprintf("unknown size %q", s.ForegroundSize)}
	}
	for field, c := range map[string]string{
		"primary_color":   s.PrimaryColor,
		"secondary_color": s.SecondaryColor,
		"stroke_color":    s.StrokeColor,
		"title_color":     s.TitleColor,
		"author_color":    s.AuthorColor,
	} {
		if _, err := ParseColor(c); err != nil {
			return &ValidationError{Field: field, Reason: err.Error()}
		}
	}
	return nil
}

// Resolution of the output surface for the configured aspect.
func (s StyleConfig) Resolution() image.Point {
	if p, ok := resolutions[s.Aspect]; ok {
		return p
	}
	return resolutions[Landscape169]
}

// ForegroundFraction of the surface height taken by the foreground overlay.
func (s StyleConfig) ForegroundFraction() float64 {
	if f, ok := sizeTiers[s.ForegroundSize]; ok {
		return f
	}
	return sizeTiers[SizeMedium]
}
