package monitor

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# Suitcase Monitor

## Transports

| Key | Action |
| --- | --- |
| b / p | Use the Bluetooth transport |
| n / w | Use the network transport |
| s | Scan for suitcases (Bluetooth) |
| enter | Connect to the selected suitcase |
| d | Disconnect, or stop scanning |

## Display

| Key | Action |
| --- | --- |
| up / down, k / j | Move the device cursor |
| c | Switch between Economy (50 lbs) and Business (70 lbs) |
| u | Show weights in lbs or kg |
| pgup / pgdn | Scroll the event log |
| esc | Dismiss the alert, notice or this help |
| ? | Toggle this help |
| q | Quit |

An alert fires once when the bag goes **over** the allowance and again only
after it has dropped back within it.
`

// helpView renders the key reference as markdown, caching per width.
type helpView struct {
	width    int
	rendered string
}

func (h *helpView) View(width int) string {
	if width == h.width && h.rendered != "" {
		return h.rendered
	}
	h.width = width
	h.rendered = renderMarkdown(helpMarkdown, width)
	return h.rendered
}

func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
