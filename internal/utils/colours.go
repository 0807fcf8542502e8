package utils

// ColourScheme holds the Catppuccin Mocha palette used across the views.
type ColourScheme struct {
	Red      string
	Peach    string
	Yellow   string
	Green    string
	Teal     string
	Blue     string
	Mauve    string
	Lavender string
	Text     string
	Subtext0 string
	Surface1 string
	Surface0 string
	Base     string
}

var Colours = ColourScheme{
	Red:      "#f38ba8",
	Peach:    "#fab387",
	Yellow:   "#f9e2af",
	Green:    "#a6e3a1",
	Teal:     "#94e2d5",
	Blue:     "#89b4fa",
	Mauve:    "#cba6f7",
	Lavender: "#b4befe",
	Text:     "#cdd6f4",
	Subtext0: "#a6adc8",
	Surface1: "#45475a",
	Surface0: "#313244",
	Base:     "#1e1e2e",
}
