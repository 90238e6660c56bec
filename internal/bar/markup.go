package bar

import (
	"strings"

	"github.com/muesli/termenv"
)

// Markup is a color marker dialect understood by a status bar.
type Markup string

const (
	// MarkupStatus2D targets dwm with the status2d patch: ^c#fg^^b#bg^...^d^.
	MarkupStatus2D Markup = "status2d"

	// MarkupDzen2 targets dzen2: ^fg(#fg)^bg(#bg)...^fg()^bg().
	MarkupDzen2 Markup = "dzen2"

	// MarkupLemonbar targets lemonbar: %{F#fg}%{B#bg}...%{F-}%{B-}.
	MarkupLemonbar Markup = "lemonbar"

	// MarkupANSI emits true-color terminal escape sequences.
	MarkupANSI Markup = "ansi"
)

// Markups lists every supported dialect.
var Markups = []Markup{MarkupStatus2D, MarkupDzen2, MarkupLemonbar, MarkupANSI}

// Valid reports whether m is a known dialect.
func (m Markup) Valid() bool {
	for _, known := range Markups {
		if m == known {
			return true
		}
	}
	return false
}

// Wrap surrounds text with foreground/background markers followed by a
// reset. Empty colors are omitted.
func (m Markup) Wrap(fg, bg, text string) string {
	var b strings.Builder

	switch m {
	case MarkupDzen2:
		if fg != "" {
			b.WriteString("^fg(" + fg + ")")
		}
		if bg != "" {
			b.WriteString("^bg(" + bg + ")")
		}
		b.WriteString(text)
		if fg != "" {
			b.WriteString("^fg()")
		}
		if bg != "" {
			b.WriteString("^bg()")
		}

	case MarkupLemonbar:
		if fg != "" {
			b.WriteString("%{F" + fg + "}")
		}
		if bg != "" {
			b.WriteString("%{B" + bg + "}")
		}
		b.WriteString(text)
		if fg != "" {
			b.WriteString("%{F-}")
		}
		if bg != "" {
			b.WriteString("%{B-}")
		}

	case MarkupANSI:
		style := termenv.TrueColor.String(text)
		if fg != "" {
			style = style.Foreground(termenv.TrueColor.Color(fg))
		}
		if bg != "" {
			style = style.Background(termenv.TrueColor.Color(bg))
		}
		b.WriteString(style.String())

	default:
		if fg != "" {
			b.WriteString("^c" + fg + "^")
		}
		if bg != "" {
			b.WriteString("^b" + bg + "^")
		}
		b.WriteString(text)
		b.WriteString("^d^")
	}

	return b.String()
}

// Escape neutralizes marker characters in producer output so that command
// output cannot inject formatting.
func (m Markup) Escape(text string) string {
	switch m {
	case MarkupDzen2:
		return strings.ReplaceAll(text, "^", "^^")
	case MarkupLemonbar:
		return strings.ReplaceAll(text, "%", "%%")
	default:
		// status2d has no escape sequence; ANSI output is already literal
		return text
	}
}
