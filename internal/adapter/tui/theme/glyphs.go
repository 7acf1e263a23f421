package theme

import (
	"os"
	"strings"
)

// Glyphs are the monitor's icons.
type Glyphs struct {
	Bag    string
	Within string
	Over   string
	Alert  string
	Cursor string
	Sep    string
	More   string
	Link   string // connected
	NoLink string // idle

	// BarOn holds one glyph per signal bar, weakest first.
	BarOn  [4]string
	BarOff string
}

var unicodeGlyphs = Glyphs{
	Bag:    "\U0001F9F3",
	Within: "✓",
	Over:   "✗",
	Alert:  "⚠",
	Cursor: "→",
	Sep:    "•",
	More:   "…",
	Link:   "●",
	NoLink: "○",
	BarOn:  [4]string{"▂", "▄", "▆", "█"},
	BarOff: "·",
}

var asciiGlyphs = Glyphs{
	Bag:    "[#]",
	Within: "[OK]",
	Over:   "[OVER]",
	Alert:  "[!]",
	Cursor: ">",
	Sep:    "|",
	More:   "...",
	Link:   "(*)",
	NoLink: "( )",
	BarOn:  [4]string{"|", "|", "|", "|"},
	BarOff: ".",
}

// G is the active glyph set.
var G = unicodeGlyphs

// UseASCII switches between the Unicode and ASCII glyph sets.
func UseASCII(ascii bool) {
	if ascii {
		G = asciiGlyphs
		return
	}
	G = unicodeGlyphs
}

// WantsASCII reports whether the terminal should get ASCII glyphs.
// SUITCASE_ASCII_SYMBOLS forces them; the Linux virtual console and dumb
// terminals cannot draw the emoji or block elements.
func WantsASCII() bool {
	if v := os.Getenv("SUITCASE_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return true
	}
	switch os.Getenv("TERM") {
	case "linux", "dumb":
		return true
	}
	return false
}

// SignalLevel maps RSSI in dBm to 0..4 bars. -55 dBm and stronger is full
// strength and each 10 dB weaker drops a bar.
func SignalLevel(rssi int) int {
	switch {
	case rssi >= -55:
		return 4
	case rssi >= -65:
		return 3
	case rssi >= -75:
		return 2
	case rssi >= -85:
		return 1
	default:
		return 0
	}
}

// SignalBars renders rssi as four bars.
func SignalBars(rssi int) string {
	n := SignalLevel(rssi)
	var b strings.Builder
	for i, on := range G.BarOn {
		if i < n {
			b.WriteString(on)
		} else {
			b.WriteString(G.BarOff)
		}
	}
	return b.String()
}

func init() {
	UseASCII(WantsASCII())
}
