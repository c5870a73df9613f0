package anim

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/alex2wong/how-is-your-song-sub000/lyrics"
	"github.com/alex2wong/how-is-your-song-sub000/media"
	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

const (
	// one full foreground turn
	rotationPeriod = 20.0
	lineHeight     = 1.6
	secondaryScale = 0.75
	windowBefore   = 2
	windowAfter    = 2
	authorScale    = 0.6
)

var (
	maskColor  = color.NRGBA{0, 0, 0, 128}
	patchColor = color.NRGBA{0, 0, 0, 110}
)

// Frame is everything one drawn picture depends on.
type Frame struct {
	Background media.Layer
	Foreground media.Layer // optional
	Timeline   lyrics.Timeline
	At         float64 // seconds of audio played
	Style      defs.StyleConfig
	Title      string
	Author     string
}

// Compositor draws frames. Equal frames give equal pixels; the scaled
// background and foreground are cached since stills don't change between
// ticks.
type Compositor struct {
	fonts *Fonts

	mu      sync.Mutex
	bgSrc   image.Image
	bgSize  image.Point
	bgFit   defs.Fit
	bgCache *image.RGBA

	fgSrc   image.Image
	fgSide  int
	fgCache *image.RGBA
}

func NewCompositor(fonts *Fonts) *Compositor {
	return &Compositor{fonts: fonts}
}

// NewSurface allocates a surface sized for the style.
func NewSurface(style defs.StyleConfig) *gg.Context {
	r := style.Resolution()
	return gg.NewContextForRGBA(image.NewRGBA(image.Rect(0, 0, r.X, r.Y)))
}

func (c *Compositor) DrawFrame(dc *gg.Context, f Frame) {
	st := f.Style
	w, h := float64(dc.Width()), float64(dc.Height())

	dc.Identity()
	dc.ResetClip()
	dc.SetColor(color.Black)
	dc.Clear()

	c.drawBackground(dc, f.Background, f.At, st.BackgroundFit)

	if st.Mask {
		dc.SetColor(maskColor)
		x, y, mw, mh := maskRect(st, w, h)
		dc.DrawRectangle(x, y, mw, mh)
		dc.Fill()
	}

	c.drawForeground(dc, f.Foreground, f.At, st)
	c.drawTitle(dc, f.Title, f.Author, st)
	c.drawLyrics(dc, f.Timeline, f.At, st)
}

func (c *Compositor) drawBackground(dc *gg.Context, bg media.Layer, at float64, fit defs.Fit) {
	if bg == nil {
		return
	}
	src := bg.Frame(at)
	if src == nil {
		return
	}
	size := image.Pt(dc.Width(), dc.Height())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bgCache == nil || c.bgSrc != src || c.bgSize != size || c.bgFit != fit {
		c.bgCache = scaleInto(src, size, fit)
		c.bgSrc, c.bgSize, c.bgFit = src, size, fit
	}
	dc.DrawImage(c.bgCache, 0, 0)
}

// FitRect is where a src sized picture lands on a dst surface. Cover
// overflows and gets cropped, contain letterboxes.
func FitRect(src, dst image.Point, fit defs.Fit) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 {
		return image.Rectangle{}
	}
	sx := float64(dst.X) / float64(src.X)
	sy := float64(dst.Y) / float64(src.Y)
	scale := math.Max(sx, sy)
	if fit == defs.FitContain {
		scale = math.Min(sx, sy)
	}
	w := int(math.Round(float64(src.X) * scale))
	h := int(math.Round(float64(src.Y) * scale))
	x := (dst.X - w) / 2
	y := (dst.Y - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func scaleInto(src image.Image, size image.Point, fit defs.Fit) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: size})
	r := FitRect(src.Bounds().Size(), size, fit)
	xdraw.ApproxBiLinear.Scale(dst, r, src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// maskRect is the dark area behind the lyrics: a 30% column at the side
// edge, or a full width band tall enough for the whole line window.
func maskRect(st defs.StyleConfig, w, h float64) (x, y, mw, mh float64) {
	lh := st.FontSize * lineHeight
	multi := st.DisplayMode == defs.MultiLine
	switch st.LyricPosition {
	case defs.LyricLeft:
		return 0, 0, 0.3 * w, h
	case defs.LyricRight:
		return 0.7 * w, 0, 0.3 * w, h
	case defs.LyricCenter:
		mh = 0.3 * h
		if multi {
			mh = math.Max(mh, (windowBefore+windowAfter+1)*lh)
		}
		mh = math.Min(mh, h)
		return 0, (h - mh) / 2, w, mh
	default:
		y = 0.7 * h
		if multi {
			_, ay, _ := LyricAnchor(st, w, h)
			y = math.Min(y, ay-(windowBefore+0.5)*lh)
		}
		y = math.Max(y, 0)
		return 0, y, w, h - y
	}
}

func (c *Compositor) drawForeground(dc *gg.Context, fg media.Layer, at float64, st defs.StyleConfig) {
	if fg == nil {
		return
	}
	src := fg.Frame(at)
	if src == nil {
		return
	}
	w, h := float64(dc.Width()), float64(dc.Height())
	size := st.ForegroundFraction() * h
	cx, cy := foregroundCenter(st.LyricPosition, w, h)
	cy += st.ForegroundOffset * h

	side := int(math.Round(size))
	if side <= 0 {
		return
	}
	pic := c.foreground(src, side)

	dc.Push()
	defer dc.Pop()
	if st.ForegroundRotate {
		turn := math.Mod(at, rotationPeriod) / rotationPeriod
		dc.RotateAbout(turn*2*math.Pi, cx, cy)
	}
	if st.ForegroundShape == defs.ShapeCircle {
		dc.DrawCircle(cx, cy, size/2)
	} else {
		dc.DrawRoundedRectangle(cx-size/2, cy-size/2, size, size, size*0.08)
	}
	dc.Clip()
	dc.DrawImageAnchored(pic, int(math.Round(cx)), int(math.Round(cy)), 0.5, 0.5)
	dc.ResetClip()
}

func (c *Compositor) foreground(src image.Image, side int) *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fgCache == nil || c.fgSrc != src || c.fgSide != side {
		c.fgCache = scaleInto(src, image.Pt(side, side), defs.FitCover)
		c.fgSrc, c.fgSide = src, side
	}
	return c.fgCache
}

// the foreground sits opposite to side lyrics
func foregroundCenter(pos defs.LyricPosition, w, h float64) (x, y float64) {
	switch pos {
	case defs.LyricLeft:
		return 0.7 * w, 0.5 * h
	case defs.LyricRight:
		return 0.3 * w, 0.5 * h
	case defs.LyricBottom:
		return 0.5 * w, 0.4 * h
	default:
		return 0.5 * w, 0.5 * h
	}
}

func (c *Compositor) drawTitle(dc *gg.Context, title, author string, st defs.StyleConfig) {
	if title == "" && author == "" {
		return
	}
	ha, va, err := defs.ParseAnchor(st.TitlePosition)
	if err != nil {
		ha, va = defs.AlignLeft, defs.AlignTop
	}
	w, h := float64(dc.Width()), float64(dc.Height())
	m := st.TitleMargin
	ts := st.TitleFontSize
	as := ts * authorScale
	gap := ts * 0.3

	titleFace := c.fonts.Face(ts)
	authorFace := c.fonts.Face(as)

	blockH := 0.0
	blockW := 0.0
	if title != "" {
		dc.SetFontFace(titleFace)
		tw, _ := dc.MeasureString(title)
		blockW, blockH = tw, ts
	}
	if author != "" {
		dc.SetFontFace(authorFace)
		aw, _ := dc.MeasureString(author)
		blockW = math.Max(blockW, aw)
		if blockH > 0 {
			blockH += gap
		}
		blockH += as
	}

	var x, ax, top float64
	switch ha {
	case defs.AlignLeft:
		x, ax = m, 0
	case defs.AlignCenter:
		x, ax = w/2, 0.5
	default:
		x, ax = w-m, 1
	}
	switch va {
	case defs.AlignTop:
		top = m
	case defs.AlignMiddle:
		top = (h - blockH) / 2
	default:
		top = h - m - blockH
	}

	if st.Mask {
		pad := ts * 0.3
		dc.SetColor(patchColor)
		dc.DrawRoundedRectangle(x-ax*blockW-pad, top-pad, blockW+2*pad, blockH+2*pad, pad)
		dc.Fill()
	}

	// unmasked text always needs an outline to stay readable
	stroke := st.Stroke || !st.Mask
	strokeColor := mustColor(st.StrokeColor, color.Black)
	y := top
	if title != "" {
		dc.SetFontFace(titleFace)
		drawText(dc, title, x, y, ax, 1, mustColor(st.TitleColor, color.White), strokeColor, strokeWidth(ts), stroke)
		y += ts + gap
	}
	if author != "" {
		dc.SetFontFace(authorFace)
		drawText(dc, author, x, y, ax, 1, mustColor(st.AuthorColor, color.White), strokeColor, strokeWidth(as), stroke)
	}
}

// LyricAnchor is the active line's position and its horizontal alignment.
func LyricAnchor(st defs.StyleConfig, w, h float64) (x, y, ax float64) {
	switch st.LyricPosition {
	case defs.LyricLeft:
		return 0.15 * w, 0.5 * h, 0
	case defs.LyricRight:
		return 0.85 * w, 0.5 * h, 1
	case defs.LyricCenter:
		return 0.5 * w, 0.5 * h, 0.5
	default:
		if st.DisplayMode == defs.MultiLine {
			// keep the lines after the active one on screen
			return 0.5 * w, h - st.FontSize*lineHeight*(windowAfter+0.5), 0.5
		}
		return 0.5 * w, 0.85 * h, 0.5
	}
}

func (c *Compositor) drawLyrics(dc *gg.Context, tl lyrics.Timeline, at float64, st defs.StyleConfig) {
	if len(tl) == 0 {
		return
	}
	active := tl.ActiveIndex(at)

	var window []int
	if st.DisplayMode == defs.SingleLine {
		if active < 0 {
			return
		}
		window = []int{active}
	} else {
		window = tl.Window(active, windowBefore, windowAfter)
	}

	w, h := float64(dc.Width()), float64(dc.Height())
	x, y0, ax := LyricAnchor(st, w, h)
	lh := st.FontSize * lineHeight
	primary := mustColor(st.PrimaryColor, color.White)
	secondary := mustColor(st.SecondaryColor, color.Gray{Y: 176})
	strokeColor := mustColor(st.StrokeColor, color.Black)

	for _, i := range window {
		if tl[i].Text == "" {
			continue
		}
		size, fill := st.FontSize*secondaryScale, secondary
		if i == active {
			size, fill = st.FontSize, primary
		}
		dc.SetFontFace(c.fonts.Face(size))
		y := y0 + float64(i-active)*lh
		drawText(dc, tl[i].Text, x, y, ax, 0.5, fill, strokeColor, strokeWidth(size), st.Stroke)
	}
}

func strokeWidth(size float64) float64 {
	return math.Max(2, size/16)
}

// drawText outlines by stamping the text around the anchor, then fills.
func drawText(dc *gg.Context, s string, x, y, ax, ay float64, fill, stroke color.Color, sw float64, withStroke bool) {
	if withStroke {
		dc.SetColor(stroke)
		const steps = 16
		for i := 0; i < steps; i++ {
			a := 2 * math.Pi * float64(i) / steps
			dc.DrawStringAnchored(s, x+sw*math.Cos(a), y+sw*math.Sin(a), ax, ay)
		}
	}
	dc.SetColor(fill)
	dc.DrawStringAnchored(s, x, y, ax, ay)
}

func mustColor(s string, fallback color.Color) color.Color {
	c, err := defs.ParseColor(s)
	if err != nil {
		return fallback
	}
	return c
}
