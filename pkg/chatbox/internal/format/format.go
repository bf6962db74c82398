// Package format turns chat messages into terminal text: sanitising, markdown
// rendering, durations and truncation.
package format

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/ansi"
	"gopkg.in/yaml.v3"

	"github.com/germanamz/chatbox/pkg/chatbox/internal/styles"
	"github.com/germanamz/chatbox/pkg/chats/message"
	"github.com/germanamz/chatbox/pkg/chats/role"
)

// IsDarkBG is set once before bubbletea starts so that glamour never issues
// its own OSC 11 query while the program is running.
var IsDarkBG bool

// ThinkingMessages are displayed while a reply is pending.
var ThinkingMessages = []string{
	"Thinking...",
	"Brewing a response...",
	"Connecting synapses...",
	"Assembling words...",
	"Weaving thoughts...",
	"Exploring possibilities...",
}

var (
	mdRenderer      *glamour.TermRenderer
	mdRendererMu    sync.Mutex
	mdRendererWidth int
)

// SetDarkBG sets IsDarkBG and drops the current renderer so the next
// InitMarkdownRenderer picks the matching style.
func SetDarkBG(dark bool) {
	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	IsDarkBG = dark
	mdRenderer = nil
	mdRendererWidth = 0
}

// InitMarkdownRenderer initializes the glamour renderer at the given width.
func InitMarkdownRenderer(width int) {
	if width <= 0 {
		width = 100
	}
	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	if width == mdRendererWidth && mdRenderer != nil {
		return
	}
	// glamour.WithAutoStyle() queries the terminal (OSC 11), which races with
	// bubbletea's input handling; pick the style from IsDarkBG instead.
	style := glamourstyles.LightStyleConfig
	if IsDarkBG {
		style = glamourstyles.DarkStyleConfig
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	mdRenderer = r
	mdRendererWidth = width
}

// RenderMarkdown converts markdown text to terminal-formatted output. Before
// InitMarkdownRenderer has run, text is returned unchanged.
func RenderMarkdown(text string) string {
	mdRendererMu.Lock()
	r := mdRenderer
	mdRendererMu.Unlock()
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// Sanitize strips ANSI escape sequences and other control characters from
// untrusted content, keeping newlines and tabs.
func Sanitize(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// RenderDetails marshals a tool_call payload as YAML for display.
func RenderDetails(details any) string {
	if details == nil {
		return ""
	}
	out, err := yaml.Marshal(details)
	if err != nil {
		return fmt.Sprintf("%v", details)
	}
	return Sanitize(strings.TrimRight(string(out), "\n"))
}

// RenderMessage formats one chat message for the message list.
func RenderMessage(m message.Message) string {
	text := Sanitize(m.Content)

	switch m.Role {
	case role.User:
		return indent(stamped(styles.UserPrefixStyle.Render("You"), m.Timestamp), text)
	case role.ToolCall:
		out := indent(stamped(styles.ToolPrefixStyle.Render("⚙ Tool"), m.Timestamp), text)
		if m.HasDetails() {
			if d := RenderDetails(m.Details); d != "" {
				out += "\n" + styles.ToolDetailsStyle.Render(d)
			}
		}
		return out
	default:
		return stamped(styles.AssistantPrefixStyle.Render("Assistant"), m.Timestamp) + "\n" + RenderMarkdown(text)
	}
}

// stamped appends the message time to a rendered header. Unstamped messages
// keep the bare header.
func stamped(header string, ts time.Time) string {
	if ts.IsZero() {
		return header
	}
	return header + " " + styles.TimestampStyle.Render(ts.Format("15:04"))
}

// indent places text under header, aligning continuation lines.
func indent(header, text string) string {
	lines := strings.Split(text, "\n")
	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n ")
	sb.WriteString(styles.TreeCorner)
	sb.WriteString(lines[0])
	for _, line := range lines[1:] {
		sb.WriteString("\n   ")
		sb.WriteString(line)
	}
	return sb.String()
}

// Truncate shortens s to at most n terminal cells, ending with "…" when cut.
// Newlines are replaced with spaces for single-line display.
func Truncate(s string, n int) string {
	return ansi.Truncate(strings.ReplaceAll(s, "\n", " "), n, "…")
}

// FmtDuration formats a duration for display.
func FmtDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	min := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", min, sec)
}

// RandomThinkingMessage returns a random thinking message.
func RandomThinkingMessage() string {
	return ThinkingMessages[rand.IntN(len(ThinkingMessages))] //nolint:gosec // cosmetic randomness
}
