// Package styles holds the lipgloss styles shared by the widget elements.
package styles

import "github.com/charmbracelet/lipgloss"

// Theme is the set of colours a host may override. Empty fields keep the
// default.
type Theme struct {
	Foreground string `yaml:"foreground"`
	Muted      string `yaml:"muted"`
	Accent     string `yaml:"accent"`
	Error      string `yaml:"error"`
	Tool       string `yaml:"tool"`
}

// DefaultTheme is the GitHub terminal light palette.
var DefaultTheme = Theme{
	Foreground: "#24292f",
	Muted:      "#656d76",
	Accent:     "#0969da",
	Error:      "#cf222e",
	Tool:       "#8250df",
}

var (
	ColorFg     lipgloss.Color
	ColorMuted  lipgloss.Color
	ColorAccent lipgloss.Color
	ColorError  lipgloss.Color
	ColorTool   lipgloss.Color
)

// Centralized style definitions for the widget. Rebuilt by Apply.
var (
	TitleStyle  lipgloss.Style
	HeaderStyle lipgloss.Style

	UserPrefixStyle      lipgloss.Style
	AssistantPrefixStyle lipgloss.Style
	ToolPrefixStyle      lipgloss.Style
	ToolDetailsStyle     lipgloss.Style
	TimestampStyle       lipgloss.Style

	SpinnerStyle lipgloss.Style
	DimStyle     lipgloss.Style
	StatusStyle  lipgloss.Style
	ErrorStyle   lipgloss.Style

	FocusedBorder  lipgloss.Style
	DisabledBorder lipgloss.Style
)

func init() {
	Apply(DefaultTheme)
}

// Apply rebuilds every style from t, falling back to DefaultTheme for empty
// colours. It must be called before the widget starts rendering.
func Apply(t Theme) {
	ColorFg = pick(t.Foreground, DefaultTheme.Foreground)
	ColorMuted = pick(t.Muted, DefaultTheme.Muted)
	ColorAccent = pick(t.Accent, DefaultTheme.Accent)
	ColorError = pick(t.Error, DefaultTheme.Error)
	ColorTool = pick(t.Tool, DefaultTheme.Tool)

	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted)

	UserPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	AssistantPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorFg)
	ToolPrefixStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorTool)
	ToolDetailsStyle = lipgloss.NewStyle().
		Foreground(ColorMuted).
		PaddingLeft(1).
		BorderLeft(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorTool)
	TimestampStyle = lipgloss.NewStyle().Foreground(ColorMuted).Faint(true)

	SpinnerStyle = lipgloss.NewStyle().Foreground(ColorTool)
	DimStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	StatusStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ErrorStyle = lipgloss.NewStyle().Foreground(ColorError)

	FocusedBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorAccent)
	DisabledBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorMuted)
}

func pick(v, fallback string) lipgloss.Color {
	if v == "" {
		return lipgloss.Color(fallback)
	}
	return lipgloss.Color(v)
}

// TreeCorner joins a message body to its header.
const TreeCorner = "└ "
