package render

import "image/color"

var (
	// Background fills the letterbox around the preview.
	Background = color.RGBA{R: 0x09, G: 0x09, B: 0x0B, A: 0xFF}
	// Foreground is used for captions.
	Foreground = color.RGBA{R: 0xFA, G: 0xFA, B: 0xFA, A: 0xFF}

	// PanelPadding surrounds the share code in the side panel.
	PanelPadding = 48
)
