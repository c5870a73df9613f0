package anim

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/alex2wong/how-is-your-song-sub000/lyrics"
	"github.com/alex2wong/how-is-your-song-sub000/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *media.Asset {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return media.NewImageAsset("solid", img)
}

func plainStyle() defs.StyleConfig {
	st := defs.DefaultStyle()
	st.Mask = false
	st.Stroke = false
	return st
}

func newCompositor(t *testing.T) *Compositor {
	f, err := LoadFonts("")
	require.NoError(t, err)
	return NewCompositor(f)
}

func rgba(dc interface{ Image() image.Image }) *image.RGBA {
	return dc.Image().(*image.RGBA)
}

func TestFitRect(t *testing.T) {
	dst := image.Pt(1280, 720)

	r := FitRect(image.Pt(100, 50), dst, defs.FitCover)
	assert.Equal(t, image.Rect(-80, 0, 1360, 720), r)

	r = FitRect(image.Pt(100, 50), dst, defs.FitContain)
	assert.Equal(t, image.Rect(0, 40, 1280, 680), r)

	// exact aspect match fills either way
	assert.Equal(t, image.Rect(0, 0, 1280, 720), FitRect(image.Pt(16, 9), dst, defs.FitCover))
	assert.Equal(t, image.Rect(0, 0, 1280, 720), FitRect(image.Pt(16, 9), dst, defs.FitContain))

	assert.Equal(t, image.Rectangle{}, FitRect(image.Pt(0, 10), dst, defs.FitCover))
}

func TestBackgroundOnly(t *testing.T) {
	c := newCompositor(t)
	st := plainStyle()
	dc := NewSurface(st)
	red := color.RGBA{255, 0, 0, 255}

	// empty timeline, no foreground, no title: nothing but the background
	c.DrawFrame(dc, Frame{Background: solid(32, 32, red), Timeline: lyrics.Timeline{}, Style: st})

	img := rgba(dc)
	assert.Equal(t, image.Rect(0, 0, 1280, 720), img.Bounds())
	for _, p := range []image.Point{{0, 0}, {640, 360}, {1279, 719}, {10, 700}} {
		assert.Equal(t, red, img.RGBAAt(p.X, p.Y), p)
	}
}

func TestBackgroundContain(t *testing.T) {
	c := newCompositor(t)
	st := plainStyle()
	st.BackgroundFit = defs.FitContain
	dc := NewSurface(st)
	red := color.RGBA{255, 0, 0, 255}

	c.DrawFrame(dc, Frame{Background: solid(100, 100, red), Style: st})

	img := rgba(dc)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(10, 360))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(1270, 360))
	assert.Equal(t, red, img.RGBAAt(640, 360))
}

func TestMaskDarkens(t *testing.T) {
	c := newCompositor(t)
	st := plainStyle()
	st.Mask = true
	dc := NewSurface(st)
	white := color.RGBA{255, 255, 255, 255}

	c.DrawFrame(dc, Frame{Background: solid(16, 9, white), Style: st})

	img := rgba(dc)
	assert.Equal(t, white, img.RGBAAt(640, 100))
	below := img.RGBAAt(640, 700)
	assert.Less(t, below.R, uint8(200))
}

func TestDrawFrameIsPure(t *testing.T) {
	c := newCompositor(t)
	st := defs.DefaultStyle()
	st.ForegroundRotate = true
	tl := lyrics.Timeline{{Time: 0, Text: "first"}, {Time: 2, Text: "second"}, {Time: 4, Text: "third"}}
	f := Frame{
		Background: solid(64, 48, color.RGBA{20, 40, 60, 255}),
		Foreground: solid(10, 10, color.RGBA{200, 100, 0, 255}),
		Timeline:   tl,
		At:         2.5,
		Style:      st,
		Title:      "title",
		Author:     "author",
	}

	a, b := NewSurface(st), NewSurface(st)
	c.DrawFrame(a, f)
	// something else in between must not leak into the next frame
	c.DrawFrame(b, Frame{Background: solid(8, 8, color.White), Style: st, At: 7})
	c.DrawFrame(b, f)

	assert.Equal(t, rgba(a).Pix, rgba(b).Pix)
}

func TestForegroundDrawn(t *testing.T) {
	c := newCompositor(t)
	st := plainStyle()
	st.ForegroundShape = defs.ShapeCircle
	dc := NewSurface(st)
	green := color.RGBA{0, 255, 0, 255}

	c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Foreground: solid(20, 20, green), Style: st})

	img := rgba(dc)
	// bottom lyrics put the foreground above the middle
	center := img.RGBAAt(640, 288)
	assert.Greater(t, center.G, uint8(240))
	assert.Less(t, center.R, uint8(16))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(50, 50))
}

// colored reports whether a pixel in rows [y0, y1) is close to c.
func colored(img *image.RGBA, y0, y1 int, c color.RGBA) bool {
	for y := y0; y < y1; y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			p := img.RGBAAt(x, y)
			if absDiff(p.R, c.R) < 40 && absDiff(p.G, c.G) < 40 && absDiff(p.B, c.B) < 40 {
				return true
			}
		}
	}
	return false
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestActiveLineColors(t *testing.T) {
	c := newCompositor(t)
	st := plainStyle()
	st.LyricPosition = defs.LyricCenter
	st.PrimaryColor = "#ff0000"
	st.SecondaryColor = "#00ff00"
	dc := NewSurface(st)
	tl := lyrics.Timeline{{Time: 0, Text: "HHHH"}, {Time: 10, Text: "HHHH"}}

	c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Timeline: tl, At: 1, Style: st})

	img := rgba(dc)
	red := color.RGBA{255, 0, 0, 255}
	green := color.RGBA{0, 255, 0, 255}
	lh := int(st.FontSize * lineHeight)

	// active line centered at H/2, the next one a line below
	assert.True(t, colored(img, 360-lh/3, 360+lh/3, red))
	assert.False(t, colored(img, 360-lh/3, 360+lh/3, green))
	assert.True(t, colored(img, 360+lh-lh/3, 360+lh+lh/3, green))
}

func TestSingleLineBeforeFirst(t *testing.T) {
	c := newCompositor(t)
	st := plainStyle()
	st.DisplayMode = defs.SingleLine
	st.PrimaryColor = "#ff0000"
	st.SecondaryColor = "#ff0000"
	dc := NewSurface(st)
	tl := lyrics.Timeline{{Time: 5, Text: "HHHH"}}

	c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Timeline: tl, At: 1, Style: st})
	assert.False(t, colored(rgba(dc), 0, 720, color.RGBA{255, 0, 0, 255}))

	c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Timeline: tl, At: 6, Style: st})
	assert.True(t, colored(rgba(dc), 540, 680, color.RGBA{255, 0, 0, 255}))
}

func TestLyricAnchor(t *testing.T) {
	st := defs.DefaultStyle()

	st.LyricPosition = defs.LyricLeft
	x, _, ax := LyricAnchor(st, 1000, 500)
	assert.InDelta(t, 150, x, 1e-9)
	assert.Equal(t, 0.0, ax)

	st.LyricPosition = defs.LyricRight
	x, _, ax = LyricAnchor(st, 1000, 500)
	assert.InDelta(t, 850, x, 1e-9)
	assert.Equal(t, 1.0, ax)

	st.LyricPosition = defs.LyricBottom
	st.DisplayMode = defs.SingleLine
	_, y, _ := LyricAnchor(st, 1000, 500)
	assert.InDelta(t, 425, y, 1e-9)
}

// coloredIn reports whether a pixel inside r is close to c.
func coloredIn(img *image.RGBA, r image.Rectangle, c color.RGBA) bool {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			p := img.RGBAAt(x, y)
			if absDiff(p.R, c.R) < 40 && absDiff(p.G, c.G) < 40 && absDiff(p.B, c.B) < 40 {
				return true
			}
		}
	}
	return false
}

func titleStyle(pos string, margin float64) defs.StyleConfig {
	st := plainStyle()
	st.Mask = true // no outline, only the fill color counts
	st.TitlePosition = pos
	st.TitleMargin = margin
	st.TitleColor = "#ff0000"
	return st
}

func TestTitleAnchors(t *testing.T) {
	c := newCompositor(t)
	red := color.RGBA{255, 0, 0, 255}
	ts := int(defs.DefaultStyle().TitleFontSize)

	cases := []struct {
		pos    string
		margin float64
		in     image.Rectangle // where the title must show
		out    image.Rectangle // where it must not
	}{
		{"left-top", 40, image.Rect(40, 40, 640, 40+ts+10), image.Rect(0, 360, 1280, 720)},
		{"right-bottom", 40, image.Rect(640, 720-40-ts-10, 1240, 720-40+10), image.Rect(0, 0, 1280, 360)},
		// the margin pushes the block further in
		{"right-bottom", 120, image.Rect(640, 720-120-ts-10, 1160, 720-120+10), image.Rect(1165, 0, 1280, 720)},
		{"center-center", 40, image.Rect(440, 360-ts, 840, 360+ts), image.Rect(0, 0, 1280, 250)},
		{"center-top", 40, image.Rect(440, 40, 840, 40+ts+10), image.Rect(0, 0, 400, 720)},
		{"left-bottom", 40, image.Rect(40, 720-40-ts-10, 640, 720-40+10), image.Rect(640, 0, 1280, 720)},
	}
	for _, tc := range cases {
		st := titleStyle(tc.pos, tc.margin)
		dc := NewSurface(st)
		c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Style: st, Title: "HHHH"})
		img := rgba(dc)

		assert.True(t, coloredIn(img, tc.in, red), "%s/%v inside", tc.pos, tc.margin)
		assert.False(t, coloredIn(img, tc.out, red), "%s/%v outside", tc.pos, tc.margin)
	}
}

func TestTitleStrokeWithoutMask(t *testing.T) {
	c := newCompositor(t)
	blue := color.RGBA{0, 0, 255, 255}
	area := image.Rect(0, 0, 640, 120)

	st := plainStyle()
	st.TitleColor = "#ff0000"
	st.StrokeColor = "#0000ff"
	require.False(t, st.Mask)
	require.False(t, st.Stroke)

	// no mask: outlined even though stroke is off
	dc := NewSurface(st)
	c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Style: st, Title: "HHHH"})
	assert.True(t, coloredIn(rgba(dc), area, blue))
	assert.True(t, coloredIn(rgba(dc), area, color.RGBA{255, 0, 0, 255}))

	// masked and not stroked: fill only
	st.Mask = true
	dc = NewSurface(st)
	c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Style: st, Title: "HHHH"})
	assert.False(t, coloredIn(rgba(dc), area, blue))

	// lyrics follow the stroke flag alone
	st = plainStyle()
	st.LyricPosition = defs.LyricCenter
	st.StrokeColor = "#0000ff"
	dc = NewSurface(st)
	c.DrawFrame(dc, Frame{Background: solid(4, 4, color.Black), Style: st, At: 1,
		Timeline: lyrics.Timeline{{Time: 0, Text: "HHHH"}}})
	assert.False(t, coloredIn(rgba(dc), image.Rect(0, 300, 1280, 420), blue))
}

func TestMaskGeometry(t *testing.T) {
	const w, h = 1280.0, 720.0
	st := defs.DefaultStyle()

	st.LyricPosition = defs.LyricLeft
	x, y, mw, mh := maskRect(st, w, h)
	assert.Equal(t, []float64{0, 0, 0.3 * w, h}, []float64{x, y, mw, mh})

	st.LyricPosition = defs.LyricRight
	x, y, mw, mh = maskRect(st, w, h)
	assert.InDelta(t, w, x+mw, 1e-9)
	assert.InDelta(t, 0.3*w, mw, 1e-9)
	assert.Equal(t, []float64{0, h}, []float64{y, mh})

	// bottom multi-line: the strip reaches above the first line of the window
	st.LyricPosition = defs.LyricBottom
	st.DisplayMode = defs.MultiLine
	lh := st.FontSize * lineHeight
	_, ay, _ := LyricAnchor(st, w, h)
	_, y, mw, mh = maskRect(st, w, h)
	assert.LessOrEqual(t, y, ay-windowBefore*lh-lh/2+1e-9)
	assert.InDelta(t, h, y+mh, 1e-9)
	assert.Equal(t, w, mw)

	st.DisplayMode = defs.SingleLine
	_, y, _, mh = maskRect(st, w, h)
	assert.InDelta(t, 0.7*h, y, 1e-9)
	assert.InDelta(t, 0.3*h, mh, 1e-9)

	// centered multi-line band holds all five lines
	st.LyricPosition = defs.LyricCenter
	st.DisplayMode = defs.MultiLine
	_, y, _, mh = maskRect(st, w, h)
	assert.LessOrEqual(t, y, h/2-windowBefore*lh-lh/2+1e-9)
	assert.GreaterOrEqual(t, y+mh, h/2+windowAfter*lh+lh/2-1e-9)
}

func TestMaskSideColumns(t *testing.T) {
	c := newCompositor(t)
	white := color.RGBA{255, 255, 255, 255}

	st := plainStyle()
	st.Mask = true
	st.LyricPosition = defs.LyricLeft
	dc := NewSurface(st)
	c.DrawFrame(dc, Frame{Background: solid(16, 9, white), Style: st})
	img := rgba(dc)
	assert.Less(t, img.RGBAAt(5, 360).R, uint8(200))
	assert.Less(t, img.RGBAAt(380, 360).R, uint8(200))
	assert.Equal(t, white, img.RGBAAt(400, 360))
	assert.Equal(t, white, img.RGBAAt(1275, 360))

	st.LyricPosition = defs.LyricRight
	dc = NewSurface(st)
	c.DrawFrame(dc, Frame{Background: solid(16, 9, white), Style: st})
	img = rgba(dc)
	assert.Less(t, img.RGBAAt(1275, 360).R, uint8(200))
	assert.Less(t, img.RGBAAt(900, 360).R, uint8(200))
	assert.Equal(t, white, img.RGBAAt(880, 360))
	assert.Equal(t, white, img.RGBAAt(5, 360))
}

func TestForegroundCached(t *testing.T) {
	c := newCompositor(t)
	st := plainStyle()
	fg := solid(20, 20, color.RGBA{0, 255, 0, 255})
	f := Frame{Background: solid(4, 4, color.Black), Foreground: fg, Style: st}

	c.DrawFrame(NewSurface(st), f)
	first := c.fgCache
	require.NotNil(t, first)

	f.At = 3
	c.DrawFrame(NewSurface(st), f)
	assert.Same(t, first, c.fgCache)

	// a new size scales again
	st.ForegroundSize = defs.SizeLarge
	f.Style = st
	c.DrawFrame(NewSurface(st), f)
	assert.NotSame(t, first, c.fgCache)
	assert.Equal(t, int(math.Round(0.5*720)), c.fgCache.Bounds().Dx())
}
