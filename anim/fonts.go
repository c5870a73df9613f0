package anim

import (
	"log"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Fonts hands out faces of one typeface, cached per size.
type Fonts struct {
	mu    sync.Mutex
	font  *opentype.Font
	faces map[float64]font.Face
}

// LoadFonts reads a TrueType/OpenType file; an empty path selects the
// embedded Go font, which has no CJK glyphs.
func LoadFonts(path string) (f *Fonts, err error) {
	data := goregular.TTF
	if path != "" {
		if data, err = os.ReadFile(path); err != nil {
			return
		}
	}
	otf, err := opentype.Parse(data)
	if err != nil {
		return
	}
	f = &Fonts{font: otf, faces: make(map[float64]font.Face)}
	return
}

func (f *Fonts) Face(size float64) font.Face {
	f.mu.Lock()
	defer f.mu.Unlock()

	if face, ok := f.faces[size]; ok {
		return face
	}
	face, err := opentype.NewFace(f.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Println("fonts", size, err)
		return basicfont.Face7x13
	}
	f.faces[size] = face
	return face
}
