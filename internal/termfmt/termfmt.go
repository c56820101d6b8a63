// Terminal styling, cut down from @shabbyrobe's termfmt
// (https://raw.githubusercontent.com/shabbyrobe/golib/master/termfmt/termfmt.go, MIT licensed) to
// the basic colours and bold, which is all the migration log needs.
package termfmt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Colour is one of the basic terminal foreground colours.
type Colour uint8

const (
	DefaultColour Colour = iota
	Black
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	LightGrey
)

// Style wraps a value in escape sequences when formatted.
type Style struct {
	fg   Colour
	bold bool
	v    any
}

var _ fmt.Formatter = Style{}

func Fg(c Colour) Style { return Style{fg: c} }
func Bold() Style       { return Style{bold: true} }

func (s Style) Fg(c Colour) Style {
	s.fg = c
	return s
}

func (s Style) Bold() Style {
	s.bold = true
	return s
}

func (s Style) V(v any) Style {
	s.v = v
	return s
}

// Sprint styles v as a string, or leaves it alone when styling is off.
func (s Style) Sprint(v any) string {
	return fmt.Sprintf("%s", s.V(v))
}

func (s Style) Format(f fmt.State, verb rune) {
	v := printable(fmt.Sprintf(buildValueFormat(f, verb), s.v))
	if Enabled() {
		v = s.wrap(v)
	}
	f.Write([]byte(v))
}

func (s Style) wrap(v string) string {
	var codes []string
	if s.bold {
		codes = append(codes, "1")
	}
	if s.fg != DefaultColour {
		// Black is 30, the enum starts at one above it.
		codes = append(codes, strconv.Itoa(29+int(s.fg)))
	}
	if len(codes) == 0 {
		return v
	}
	return "\x1b[" + strings.Join(codes, ";") + "m" + v + "\x1b[0m"
}

func buildValueFormat(f fmt.State, verb rune) string {
	s := "%"
	for _, flag := range " +-0#" {
		if f.Flag(int(flag)) {
			s += string(flag)
		}
	}
	if width, ok := f.Width(); ok {
		s += strconv.Itoa(width)
	}
	if prec, ok := f.Precision(); ok {
		s += "." + strconv.Itoa(prec)
	}
	return s + string(verb)
}

func printable(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) || r == '\t' {
			return r
		}
		return -1
	}, v)
}

var enabled = true

// SetEnabled turns styling on or off for every Style, e.g. when output isn't a terminal.
func SetEnabled(on bool) { enabled = on }

func Enabled() bool { return enabled }
