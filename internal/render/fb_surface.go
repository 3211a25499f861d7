package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"

	fb "github.com/gonutz/framebuffer"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/rook-computer/bgenerator/internal/render/layout"
	"github.com/rook-computer/bgenerator/internal/widget"
)

const shareCaption = "Scan to export"

// FBSurface shows previews on the Linux framebuffer. Widgets are drawn onto
// the surface's own copy of the preview, never into the pipeline buffer.
type FBSurface struct {
	Device  string
	Widgets *widget.Rasterizer
	Logger  interface {
		Infof(string, string, ...interface{})
		Errorf(string, string, ...interface{})
	}

	mu       sync.Mutex
	fbDev    *fb.Device
	screen   *image.RGBA
	display  *image.RGBA
	fontFace font.Face
	running  atomic.Bool
}

func NewFBSurface(device string, widgets *widget.Rasterizer) *FBSurface {
	return &FBSurface{Device: device, Widgets: widgets}
}

func (s *FBSurface) Start(ctx context.Context) error {
	path := s.Device
	if path == "" {
		path = "/dev/fb0"
	}
	dev, err := fb.Open(path)
	if err != nil {
		return err
	}
	s.fbDev = dev
	bounds := dev.Bounds()
	if s.Logger != nil {
		s.Logger.Infof("fb", "framebuffer open, bounds=%dx%d", bounds.Dx(), bounds.Dy())
	}
	s.screen = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		s.fontFace = basicfont.Face7x13
		if s.Logger != nil {
			s.Logger.Errorf("fb", "font parse failed, using basicfont: %v", err)
		}
	} else {
		face, ferr := opentype.NewFace(fnt, &opentype.FaceOptions{Size: 28, DPI: 72, Hinting: font.HintingFull})
		if ferr != nil {
			s.fontFace = basicfont.Face7x13
			if s.Logger != nil {
				s.Logger.Errorf("fb", "font face create failed, using basicfont: %v", ferr)
			}
		} else {
			s.fontFace = face
		}
	}

	s.running.Store(true)
	return nil
}

func (s *FBSurface) Stop() error {
	s.running.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fbDev != nil {
		s.fbDev.Close()
		s.fbDev = nil
	}
	return nil
}

// Present draws frame and pushes it to the framebuffer.
func (s *FBSurface) Present(frame Frame) error {
	if !s.running.Load() {
		return errors.New("framebuffer surface not started")
	}
	if frame.Preview == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fbDev == nil {
		return nil
	}

	src := frame.Preview.Image()
	if s.display == nil || s.display.Rect != src.Rect {
		s.display = image.NewRGBA(src.Rect)
	}
	copy(s.display.Pix, src.Pix)
	if s.Widgets != nil {
		s.Widgets.Draw(s.display, frame.Widgets)
	}

	var qr image.Image
	if frame.ShareURL != "" {
		img, err := GenerateQRCodeImage(frame.ShareURL, 0)
		if err != nil && s.Logger != nil {
			s.Logger.Errorf("fb", "share code failed: %v", err)
		}
		qr = img
	}

	Compose(s.screen, s.display, qr, s.fontFace)
	blitToFB(s.fbDev, s.screen)
	return nil
}

// Compose lays the preview out on screen: letterboxed and centred, or, when
// a share code is given and the screen is landscape, in a left square with
// the code in the right panel.
func Compose(screen *image.RGBA, preview image.Image, qr image.Image, face font.Face) {
	bounds := screen.Bounds()
	draw.Draw(screen, bounds, &image.Uniform{C: Background}, image.Point{}, draw.Src)

	area := bounds
	var panel image.Rectangle
	if qr != nil && bounds.Dx() > bounds.Dy() {
		area, panel = layout.SplitVertical(bounds, bounds.Dy())
	}

	target := layout.FitSquare(area)
	xdraw.ApproxBiLinear.Scale(screen, target, preview, preview.Bounds(), xdraw.Src, nil)

	if panel.Empty() {
		return
	}
	inner := layout.Inset(panel, PanelPadding)
	codeArea, captionArea := layout.SplitHorizontal(inner, inner.Dy()-PanelPadding)
	codeRect := layout.FitSquare(codeArea)
	xdraw.NearestNeighbor.Scale(screen, codeRect, qr, qr.Bounds(), xdraw.Over, nil)
	if face != nil {
		drawTextCentered(screen, shareCaption, captionArea, Foreground, face)
	}
}

// Helper: centered text drawing inside rect with the given face.
func drawTextCentered(img *image.RGBA, text string, rect image.Rectangle, fg color.Color, face font.Face) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: fg},
		Face: face,
	}
	textWidth := drawer.MeasureString(text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	xPos := rect.Min.X + (rect.Dx()-textWidth)/2
	baseline := rect.Min.Y + (rect.Dy()+ascent)/2
	drawer.Dot = fixed.P(xPos, baseline)
	drawer.DrawString(text)
}

// Helper: copy the composed screen to the framebuffer pixel by pixel.
func blitToFB(dev *fb.Device, screen *image.RGBA) {
	if dev == nil {
		return
	}
	bounds := dev.Bounds()
	width := min(bounds.Dx(), screen.Rect.Dx())
	height := min(bounds.Dy(), screen.Rect.Dy())
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pixel := screen.RGBAAt(x, y)
			dev.Set(bounds.Min.X+x, bounds.Min.Y+y, color.RGBA{R: pixel.R, G: pixel.G, B: pixel.B, A: 0xFF})
		}
	}
}
