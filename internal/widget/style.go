package widget

import "image/color"

var (
	zinc900 = color.RGBA{0x18, 0x18, 0x1b, 0xff}
	zinc500 = color.RGBA{0x71, 0x71, 0x7a, 0xff}
	zinc400 = color.RGBA{0xa1, 0xa1, 0xaa, 0xff}
	zinc200 = color.RGBA{0xe4, 0xe4, 0xe7, 0xff}
	zinc100 = color.RGBA{0xf4, 0xf4, 0xf5, 0xff}
	red500  = color.RGBA{0xef, 0x44, 0x44, 0xff}
	white   = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// style is one row of the variant table. A nil fill or border is not drawn.
type style struct {
	fill   *color.RGBA
	border *color.RGBA
	text   color.RGBA
}

var styles = map[Variant]style{
	Default:     {fill: &zinc900, text: white},
	Outline:     {border: &zinc200, text: zinc900},
	Ghost:       {text: zinc900},
	Secondary:   {fill: &zinc100, text: zinc900},
	Destructive: {fill: &red500, text: white},
}

// styleFor resolves a variant, falling back to Default for unknown names.
func styleFor(v Variant) style {
	if s, ok := styles[v]; ok {
		return s
	}
	return styles[Default]
}
