package access

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chord is a modifier combination plus one letter.
type Chord struct {
	Ctrl   bool
	Shift  bool
	Alt    bool
	Meta   bool
	Letter string
}

// ParseChord parses notation such as "ctrl+shift+a". At least one modifier is required.
func ParseChord(notation string) (Chord, bool) {
	var chord Chord
	parts := strings.Split(strings.ToLower(strings.TrimSpace(notation)), "+")
	for _, part := range parts {
		switch part = strings.TrimSpace(part); part {
		case "ctrl", "control":
			chord.Ctrl = true
		case "shift":
			chord.Shift = true
		case "alt", "option":
			chord.Alt = true
		case "meta", "cmd", "super":
			chord.Meta = true
		default:
			if chord.Letter != "" || utf8.RuneCountInString(part) != 1 {
				return Chord{}, false
			}
			chord.Letter = part
		}
	}
	if chord.Letter == "" || !(chord.Ctrl || chord.Shift || chord.Alt || chord.Meta) {
		return Chord{}, false
	}
	return chord, true
}

// Matches reports whether ev presses exactly this chord.
func (c Chord) Matches(ev KeyEvent) bool {
	if c.Letter == "" {
		return false
	}
	return normalizeKey(ev.Key) == c.Letter &&
		ev.Ctrl == c.Ctrl && ev.Shift == c.Shift && ev.Alt == c.Alt && ev.Meta == c.Meta
}

// String renders the chord in the notation accepted by ParseChord.
func (c Chord) String() string {
	parts := make([]string, 0, 5)
	if c.Ctrl {
		parts = append(parts, "ctrl")
	}
	if c.Alt {
		parts = append(parts, "alt")
	}
	if c.Meta {
		parts = append(parts, "meta")
	}
	if c.Shift {
		parts = append(parts, "shift")
	}
	parts = append(parts, c.Letter)
	return strings.Join(parts, "+")
}

// normalizeKey returns "" for keys that can never be typed, including any carrying
// control characters such as the window separator.
func normalizeKey(key string) string {
	if key == " " {
		return "space"
	}
	if strings.ContainsFunc(key, unicode.IsControl) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(key))
}

func isModifier(key string) bool {
	switch key {
	case "shift", "control", "ctrl", "alt", "meta", "os", "altgraph":
		return true
	default:
		return false
	}
}
