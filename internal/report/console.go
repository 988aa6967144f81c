package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/petems/tapmeter/internal/app"
)

const DefaultGlyph = "EEEEEEEEEE"

// Console prints one bar per reading, the glyph repeated level+1 times.
type Console struct {
	w     io.Writer
	glyph string
}

func NewConsole(w io.Writer, glyph string) *Console {
	if glyph == "" {
		glyph = DefaultGlyph
	}
	return &Console{w: w, glyph: glyph}
}

func (c *Console) Report(r app.Reading) {
	fmt.Fprintln(c.w, Bar(c.glyph, r.Level))
}

// Bar renders a level as a repeated glyph.
func Bar(glyph string, level int) string {
	if level < 0 {
		level = 0
	}
	return strings.Repeat(glyph, level+1)
}
