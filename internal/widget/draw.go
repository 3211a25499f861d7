package widget

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/freetype/raster"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var navItems = []string{"Home", "About", "Contact"}

// Rasterizer draws widgets onto RGBA canvases. It holds parsed fonts only and
// is safe for concurrent use; faces are created per Draw call.
type Rasterizer struct {
	regular *opentype.Font
	bold    *opentype.Font
	Logger  interface {
		Errorf(string, string, ...interface{})
	}
}

// NewRasterizer parses the embedded Go fonts.
func NewRasterizer() (*Rasterizer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &Rasterizer{regular: regular, bold: bold}, nil
}

// Draw rasterizes widgets onto dst in order. Each widget is translated to its
// anchor and scaled uniformly around it; anything outside dst is clipped.
func (r *Rasterizer) Draw(dst *image.RGBA, widgets []Widget) {
	if len(widgets) == 0 {
		return
	}
	b := dst.Bounds()
	ras := raster.NewRasterizer(b.Dx(), b.Dy())
	faces := map[faceKey]font.Face{}
	defer func() {
		for _, f := range faces {
			_ = f.Close()
		}
	}()

	for _, w := range widgets {
		w = w.Clamp()
		f := &frame{
			r:     r,
			dst:   dst,
			ras:   ras,
			faces: faces,
			cx:    w.X / 100 * float64(b.Dx()),
			cy:    w.Y / 100 * float64(b.Dy()),
			s:     w.Scale / 100,
		}
		switch w.Kind {
		case Button:
			f.button(w)
		case Card:
			f.card(w)
		case Input:
			f.input(w)
		case Navbar:
			f.navbar(w)
		case Badge:
			f.badge(w)
		case Avatar:
			f.avatar(w)
		default:
			if r.Logger != nil {
				r.Logger.Errorf("widget", "skipping unknown kind %q", w.Kind)
			}
		}
	}
}

func (f *frame) button(w Widget) {
	st := styleFor(w.Variant)
	label := w.label()
	bw := f.measure(label, 16, false) + 2*24
	const bh = 40.0
	box := f.roundRect(-bw/2, -bh/2, bw, bh, 6)
	f.paint(box, st)
	f.text(label, 0, 0, 16, false, st.text, true)
}

func (f *frame) card(w Widget) {
	const cw, ch = 300.0, 150.0
	box := f.roundRect(-cw/2, -ch/2, cw, ch, 8)
	f.paint(box, style{fill: &white, border: &zinc200})
	f.text(w.label(), -cw/2+20, -ch/2+30, 20, true, zinc900, false)
	f.text("Card description goes here", -cw/2+20, -ch/2+55, 14, false, zinc500, false)
	f.text("This is a sample card component.", -cw/2+20, -ch/2+90, 13, false, zinc500, false)
}

func (f *frame) input(w Widget) {
	const iw, ih = 250.0, 40.0
	box := f.roundRect(-iw/2, -ih/2, iw, ih, 6)
	f.paint(box, style{fill: &white, border: &zinc200})
	f.text(w.label(), -iw/2+12, 0, 14, false, zinc400, false)
}

func (f *frame) navbar(w Widget) {
	const nw, nh = 600.0, 60.0
	f.fill(f.roundRect(-nw/2, -nh/2, nw, nh, 0), white)

	var rule raster.Path
	rule.Start(f.pt(-nw/2, nh/2))
	rule.Add1(f.pt(nw/2, nh/2))
	f.stroke(rule, zinc200)

	f.text(w.label(), -nw/2+24, 0, 18, true, zinc900, false)
	for i, item := range navItems {
		f.text(item, nw/2-200+float64(i)*80, 0, 14, false, zinc900, false)
	}
}

func (f *frame) badge(w Widget) {
	st := styleFor(w.Variant)
	label := w.label()
	bw := f.measure(label, 12, false) + 2*16
	const bh = 24.0
	pill := f.roundRect(-bw/2, -bh/2, bw, bh, bh/2)
	f.paint(pill, st)
	f.text(label, 0, 0, 12, false, st.text, true)
}

func (f *frame) avatar(w Widget) {
	f.fill(f.circle(0, 0, 20), zinc100)
	f.text(w.label(), 0, 0, 14, false, zinc900, true)
}

// faceKey identifies a face by its on-canvas pixel size.
type faceKey struct {
	size float64
	bold bool
}

// frame maps widget-local coordinates onto the canvas.
type frame struct {
	r      *Rasterizer
	dst    *image.RGBA
	ras    *raster.Rasterizer
	faces  map[faceKey]font.Face
	cx, cy float64
	s      float64
}

func toFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }

func (f *frame) pt(lx, ly float64) fixed.Point26_6 {
	return fixed.Point26_6{X: toFixed(f.cx + lx*f.s), Y: toFixed(f.cy + ly*f.s)}
}

// roundRect returns a closed outline; r <= 0 yields square corners.
func (f *frame) roundRect(x, y, w, h, r float64) raster.Path {
	r = math.Min(r, math.Min(w, h)/2)
	var p raster.Path
	if r <= 0 {
		p.Start(f.pt(x, y))
		p.Add1(f.pt(x+w, y))
		p.Add1(f.pt(x+w, y+h))
		p.Add1(f.pt(x, y+h))
		p.Add1(f.pt(x, y))
		return p
	}
	p.Start(f.pt(x+r, y))
	p.Add1(f.pt(x+w-r, y))
	f.arc(&p, x+w-r, y+r, r, -math.Pi/2, 0)
	p.Add1(f.pt(x+w, y+h-r))
	f.arc(&p, x+w-r, y+h-r, r, 0, math.Pi/2)
	p.Add1(f.pt(x+r, y+h))
	f.arc(&p, x+r, y+h-r, r, math.Pi/2, math.Pi)
	p.Add1(f.pt(x, y+r))
	f.arc(&p, x+r, y+r, r, math.Pi, 3*math.Pi/2)
	return p
}

func (f *frame) circle(x, y, r float64) raster.Path {
	var p raster.Path
	p.Start(f.pt(x+r, y))
	f.arc(&p, x, y, r, 0, 2*math.Pi)
	return p
}

// arc appends quadratic segments of at most 45 degrees each. The stroker
// only understands linear and quadratic segments.
func (f *frame) arc(p *raster.Path, cx, cy, r, a0, a1 float64) {
	n := int(math.Ceil(math.Abs(a1-a0) / (math.Pi / 4)))
	step := (a1 - a0) / float64(n)
	for i := 0; i < n; i++ {
		t0 := a0 + float64(i)*step
		t1 := t0 + step
		mid := (t0 + t1) / 2
		d := r / math.Cos(step/2)
		p.Add2(f.pt(cx+d*math.Cos(mid), cy+d*math.Sin(mid)), f.pt(cx+r*math.Cos(t1), cy+r*math.Sin(t1)))
	}
}

func (f *frame) paint(p raster.Path, st style) {
	if st.fill != nil {
		f.fill(p, *st.fill)
	}
	if st.border != nil {
		f.stroke(p, *st.border)
	}
}

func (f *frame) fill(p raster.Path, c color.RGBA) {
	f.ras.Clear()
	f.ras.AddPath(p)
	f.rasterize(c)
}

// stroke draws a 1px (before scaling) line along p.
func (f *frame) stroke(p raster.Path, c color.RGBA) {
	f.ras.Clear()
	f.ras.AddStroke(p, toFixed(f.s), raster.SquareCapper, raster.RoundJoiner)
	f.rasterize(c)
}

func (f *frame) rasterize(c color.RGBA) {
	painter := raster.NewRGBAPainter(f.dst)
	painter.SetColor(c)
	f.ras.Rasterize(painter)
}

func (f *frame) face(size float64, bold bool) font.Face {
	key := faceKey{size: size * f.s, bold: bold}
	if face, ok := f.faces[key]; ok {
		return face
	}
	fnt := f.r.regular
	if bold {
		fnt = f.r.bold
	}
	var face font.Face = basicfont.Face7x13
	if fnt != nil {
		ff, err := opentype.NewFace(fnt, &opentype.FaceOptions{Size: key.size, DPI: 72, Hinting: font.HintingNone})
		if err != nil {
			if f.r.Logger != nil {
				f.r.Logger.Errorf("widget", "font face create failed, using basicfont: %v", err)
			}
		} else {
			face = ff
		}
	}
	f.faces[key] = face
	return face
}

// measure returns the unscaled advance width of s.
func (f *frame) measure(s string, size float64, bold bool) float64 {
	w := font.MeasureString(f.face(size, bold), s)
	return float64(w) / 64 / f.s
}

// text draws s with its vertical middle at local y. When centred, x is the
// horizontal centre, otherwise the left edge.
func (f *frame) text(s string, x, y, size float64, bold bool, c color.RGBA, centred bool) {
	face := f.face(size, bold)
	d := &font.Drawer{Dst: f.dst, Src: image.NewUniform(c), Face: face}
	dot := f.pt(x, y)
	if centred {
		dot.X -= d.MeasureString(s) / 2
	}
	m := face.Metrics()
	dot.Y += (m.Ascent - m.Descent) / 2
	d.Dot = dot
	d.DrawString(s)
}
