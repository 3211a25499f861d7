// Package widget draws mock UI elements (buttons, cards, inputs, navbars,
// badges, avatars) onto a canvas so exports match the interactive preview.
package widget

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown widget ids.
var ErrNotFound = errors.New("widget: not found")

// Kind selects the template a widget is drawn with.
type Kind string

const (
	Button Kind = "button"
	Card   Kind = "card"
	Input  Kind = "input"
	Navbar Kind = "navbar"
	Badge  Kind = "badge"
	Avatar Kind = "avatar"
)

// Kinds lists every template in palette order.
var Kinds = []Kind{Button, Card, Input, Navbar, Badge, Avatar}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("widget: unknown kind %q", s)
}

// DefaultText is the label a freshly added widget starts with.
func (k Kind) DefaultText() string {
	switch k {
	case Button:
		return "Click me"
	case Card:
		return "Card Title"
	case Input:
		return "Enter text..."
	case Navbar:
		return "Brand"
	case Badge:
		return "New"
	case Avatar:
		return "JD"
	}
	return ""
}

// placeholder is drawn when a widget's text is empty.
func (k Kind) placeholder() string {
	switch k {
	case Button:
		return "Button"
	case Badge:
		return "Badge"
	}
	return k.DefaultText()
}

// Variant picks a row of the style table.
type Variant string

const (
	Default     Variant = "default"
	Outline     Variant = "outline"
	Ghost       Variant = "ghost"
	Secondary   Variant = "secondary"
	Destructive Variant = "destructive"
)

// Widget is one mock UI element. X and Y are canvas percentages of the
// widget's centre, Scale is a percentage.
type Widget struct {
	ID      string  `json:"id"`
	Kind    Kind    `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Scale   float64 `json:"scale"`
	Text    string  `json:"text,omitempty"`
	Variant Variant `json:"variant,omitempty"`
}

// New returns a centred widget of kind k with its default label.
func New(k Kind) Widget {
	return Widget{
		ID:      uuid.NewString(),
		Kind:    k,
		X:       50,
		Y:       50,
		Scale:   100,
		Text:    k.DefaultText(),
		Variant: Default,
	}
}

// Clamp forces x and y into 0–100 and scale into 50–150.
func (w Widget) Clamp() Widget {
	w.X = clamp(w.X, 0, 100)
	w.Y = clamp(w.Y, 0, 100)
	w.Scale = clamp(w.Scale, 50, 150)
	return w
}

// label returns the text to draw.
func (w Widget) label() string {
	if w.Text == "" {
		return w.Kind.placeholder()
	}
	return w.Text
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
