package viz

import "github.com/charmbracelet/lipgloss"

// Theme is a heatmap ramp from phase 0 to phase 1 plus panel colors.
type Theme struct {
	Name   string
	Ramp   []lipgloss.Color
	Accent lipgloss.Color
	Text   lipgloss.Color
	Muted  lipgloss.Color
}

var (
	ThemeThermal = Theme{
		Name: "thermal",
		Ramp: []lipgloss.Color{
			"#000428", "#1b1464", "#5b1a8b", "#a4237a", "#e2504c", "#f89b29", "#fde047", "#ffffe0",
		},
		Accent: "#00ffff",
		Text:   "#ffffff",
		Muted:  "#666688",
	}

	ThemeOcean = Theme{
		Name: "ocean",
		Ramp: []lipgloss.Color{
			"#001a33", "#003366", "#005580", "#0077be", "#00a8cc", "#3fd0d4", "#9ff0e0", "#e0fff8",
		},
		Accent: "#ffd700",
		Text:   "#e0f0ff",
		Muted:  "#4488aa",
	}

	ThemeRetro = Theme{
		Name: "retro",
		Ramp: []lipgloss.Color{
			"#001100", "#003300", "#005500", "#007700", "#00aa00", "#00cc00", "#44ff44", "#aaffaa",
		},
		Accent: "#88ff88",
		Text:   "#00ff00",
		Muted:  "#005500",
	}

	Themes = []Theme{ThemeThermal, ThemeOcean, ThemeRetro}
)

func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeThermal
}

// NextTheme returns the theme after t, wrapping around.
func NextTheme(t Theme) Theme {
	for i, th := range Themes {
		if th.Name == t.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
