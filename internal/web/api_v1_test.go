package web

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rook-computer/bgenerator/internal/analyze"
	"github.com/rook-computer/bgenerator/internal/encode"
	"github.com/rook-computer/bgenerator/internal/noise"
	"github.com/rook-computer/bgenerator/internal/overlay"
	"github.com/rook-computer/bgenerator/internal/pipeline"
	"github.com/rook-computer/bgenerator/internal/raster"
	"github.com/rook-computer/bgenerator/internal/state"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/widget"
)

type fakePreviews struct {
	mu       sync.Mutex
	buf      *raster.Buffer
	triggers int
}

func (f *fakePreviews) Latest() *raster.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf
}

func (f *fakePreviews) Trigger() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
}

type fakeExporter struct {
	mu   sync.Mutex
	reqs []pipeline.Request
}

func (f *fakeExporter) Export(req pipeline.Request, src noise.Source) (encode.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if err := req.Config.Validate(); err != nil {
		return encode.Result{}, err
	}
	return encode.Result{
		Data:     []byte("image-bytes"),
		MIMEType: encode.MIMEType(req.Config.ExportFormat),
		Filename: encode.Filename(req.Config.CanvasSize, req.Config.ExportFormat),
	}, nil
}

type testEnv struct {
	store    *state.Store
	previews *fakePreviews
	exporter *fakeExporter
	handler  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalog, err := texture.Builtin()
	require.NoError(t, err)
	env := &testEnv{
		store:    state.NewStore(texture.DefaultConfig()),
		previews: &fakePreviews{},
		exporter: &fakeExporter{},
	}
	env.handler = NewHandler(ServerConfig{}, APIV1Deps{
		Store:          env.store,
		Presets:        catalog,
		Previews:       env.previews,
		Exporter:       env.exporter,
		MaxUploadBytes: 1 << 20,
		PublicURL:      "http://frame.local:8080",
	})
	return env
}

func (e *testEnv) do(method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(method, path string, v any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(v)
	return e.do(method, path, data, "application/json")
}

func pngBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// withHeaderSize returns a copy of a PNG whose IHDR claims w×h pixels.
func withHeaderSize(data []byte, w, h uint32) []byte {
	out := bytes.Clone(data)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func multipartBody(t *testing.T, data []byte, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		fw, err := mw.CreateFormFile("file", "overlay.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("get", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/config", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var cfg texture.Config
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
		assert.Equal(t, texture.DefaultConfig(), cfg)
	})

	t.Run("patch keeps other fields", func(t *testing.T) {
		before := env.store.Snapshot().Revision
		rec := env.doJSON(http.MethodPatch, "/api/v1/config", map[string]any{"grainIntensity": 30, "baseColor": "#102030"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		cfg := env.store.Snapshot().Config
		assert.Equal(t, 30.0, cfg.GrainIntensity)
		assert.Equal(t, texture.MustHex("#102030"), cfg.BaseColor)
		assert.Equal(t, texture.DefaultConfig().VignetteStrength, cfg.VignetteStrength)
		assert.Greater(t, env.store.Snapshot().Revision, before)
	})

	t.Run("put resets omitted fields", func(t *testing.T) {
		rec := env.doJSON(http.MethodPut, "/api/v1/config", map[string]any{"canvasSize": 1024})
		require.Equal(t, http.StatusOK, rec.Code)
		cfg := env.store.Snapshot().Config
		assert.Equal(t, 1024, cfg.CanvasSize)
		assert.Equal(t, texture.DefaultConfig().GrainIntensity, cfg.GrainIntensity)
	})

	t.Run("out of range", func(t *testing.T) {
		rec := env.doJSON(http.MethodPatch, "/api/v1/config", map[string]any{"grainIntensity": 99})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_config", decodeAPIError(t, rec).Error)
		assert.Contains(t, decodeAPIError(t, rec).Message, "grainIntensity")
	})

	t.Run("bad json", func(t *testing.T) {
		rec := env.doJSON(http.MethodPatch, "/api/v1/config", map[string]any{"nope": 1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.doJSON(http.MethodPatch, "/api/v1/config", map[string]any{"baseColor": "blue"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPresetEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/presets", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []presetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 5)
	assert.Equal(t, "minimal", list[0].ID)

	env.store.UpdateConfig(func(c *texture.Config) { c.CanvasSize = 4096 })
	rec = env.do(http.MethodPost, "/api/v1/presets/warm/apply", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := env.store.Snapshot()
	assert.Equal(t, "warm", snap.PresetID)
	assert.Equal(t, 4096, snap.Config.CanvasSize)

	rec = env.do(http.MethodGet, "/api/v1/presets", nil, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	for _, p := range list {
		assert.Equal(t, p.ID == "warm", p.Active, p.ID)
	}

	rec = env.do(http.MethodPost, "/api/v1/presets/neon/apply", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOverlayUpload(t *testing.T) {
	env := newTestEnv(t)
	red := pngBytes(t, 4, 2, color.RGBA{R: 255, A: 255})

	t.Run("accepted", func(t *testing.T) {
		body, ct := multipartBody(t, red, map[string]string{"opacity": "40", "x": "25"})
		rec := env.do(http.MethodPost, "/api/v1/overlays", body, ct)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got overlayResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, 4, got.Width)
		assert.Equal(t, 2, got.Height)
		assert.Equal(t, 40.0, got.Opacity)
		assert.Equal(t, 25.0, got.X)
		assert.Equal(t, 50.0, got.Y)
		assert.Equal(t, 1, env.store.OverlayCount())
	})

	t.Run("unsupported type", func(t *testing.T) {
		body, ct := multipartBody(t, []byte("just some text, not an image"), nil)
		rec := env.do(http.MethodPost, "/api/v1/overlays", body, ct)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, 1, env.store.OverlayCount())
	})

	t.Run("corrupt image", func(t *testing.T) {
		corrupt := append([]byte{}, red[:16]...)
		body, ct := multipartBody(t, corrupt, nil)
		rec := env.do(http.MethodPost, "/api/v1/overlays", body, ct)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, 1, env.store.OverlayCount())
	})

	t.Run("oversized header", func(t *testing.T) {
		revision := env.store.Snapshot().Revision
		body, ct := multipartBody(t, withHeaderSize(red, 12000, 12000), nil)
		rec := env.do(http.MethodPost, "/api/v1/overlays", body, ct)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "image_too_large")
		assert.Equal(t, 1, env.store.OverlayCount())
		assert.Equal(t, revision, env.store.Snapshot().Revision)
	})

	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartBody(t, nil, map[string]string{"x": "1"})
		rec := env.do(http.MethodPost, "/api/v1/overlays", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := make([]byte, 2<<20)
		rec := env.do(http.MethodPost, "/api/v1/overlays", big, "application/octet-stream")
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("capacity", func(t *testing.T) {
		for env.store.OverlayCount() < overlay.MaxOverlays {
			body, ct := multipartBody(t, red, nil)
			rec := env.do(http.MethodPost, "/api/v1/overlays", body, ct)
			require.Equal(t, http.StatusCreated, rec.Code)
		}
		revision := env.store.Snapshot().Revision
		body, ct := multipartBody(t, red, nil)
		rec := env.do(http.MethodPost, "/api/v1/overlays", body, ct)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, overlay.MaxOverlays, env.store.OverlayCount())
		assert.Equal(t, revision, env.store.Snapshot().Revision)
	})
}

func TestOverlayUpdateAndRemove(t *testing.T) {
	env := newTestEnv(t)
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	o, err := env.store.AddOverlay(img, overlay.DefaultPlacement())
	require.NoError(t, err)

	rec := env.doJSON(http.MethodPatch, "/api/v1/overlays/"+o.ID, map[string]any{"opacity": 50, "scale": 500})
	require.Equal(t, http.StatusOK, rec.Code)
	var got overlayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 50.0, got.Opacity)
	assert.Equal(t, 200.0, got.Scale)
	assert.Equal(t, 50.0, got.X)

	rec = env.doJSON(http.MethodPatch, "/api/v1/overlays/missing", map[string]any{"opacity": 50})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/overlays/"+o.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.store.OverlayCount())

	rec = env.do(http.MethodDelete, "/api/v1/overlays/"+o.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWidgetEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(http.MethodPost, "/api/v1/widgets", map[string]any{"type": "button", "text": "Go", "y": 20})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var w widget.Widget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, widget.Button, w.Kind)
	assert.Equal(t, "Go", w.Text)
	assert.Equal(t, 50.0, w.X)
	assert.Equal(t, 20.0, w.Y)
	assert.Equal(t, 100.0, w.Scale)

	rec = env.doJSON(http.MethodPost, "/api/v1/widgets", map[string]any{"type": "spinner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(http.MethodPatch, "/api/v1/widgets/"+w.ID, map[string]any{"scale": 300, "variant": "outline"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, 150.0, w.Scale)
	assert.Equal(t, widget.Outline, w.Variant)
	assert.Equal(t, "Go", w.Text)

	rec = env.do(http.MethodGet, "/api/v1/widgets", nil, "")
	var list []widget.Widget
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = env.do(http.MethodDelete, "/api/v1/widgets/"+w.ID, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodDelete, "/api/v1/widgets/"+w.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.doJSON(http.MethodPatch, "/api/v1/widgets/"+w.ID, map[string]any{"x": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/preview.png", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	buf, err := raster.New(8)
	require.NoError(t, err)
	buf.Fill(color.RGBA{R: 1, G: 2, B: 3, A: 255})
	env.previews.buf = buf

	rec = env.do(http.MethodGet, "/api/v1/preview.png", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddWidget(widget.New(widget.Badge))

	t.Run("session config", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/export", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename=bgenerator-2048x2048.png`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "image-bytes", rec.Body.String())
		require.Len(t, env.exporter.reqs, 1)
		assert.Len(t, env.exporter.reqs[0].Widgets, 1)
		assert.Equal(t, 1, env.previews.triggers)
	})

	t.Run("format override", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/export?format=webp", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/webp", rec.Header().Get("Content-Type"))

		rec = env.do(http.MethodGet, "/api/v1/export?format=tiff", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("shared config", func(t *testing.T) {
		triggers := env.previews.triggers
		shared := texture.DefaultConfig()
		shared.CanvasSize = 1024
		shared.ExportFormat = texture.JPEG

		rec := env.do(http.MethodGet, "/api/v1/export?config="+shared.Token(), nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "bgenerator-1024x1024.jpg")
		last := env.exporter.reqs[len(env.exporter.reqs)-1]
		assert.Equal(t, shared, last.Config)
		assert.Equal(t, triggers, env.previews.triggers)
	})

	t.Run("bad token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/v1/export?config=%%%", nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestExportWithPipeline(t *testing.T) {
	store := state.NewStore(texture.DefaultConfig())
	store.SetConfig(func() texture.Config {
		c := texture.DefaultConfig()
		c.CanvasSize = 1024
		c.GrainIntensity = 0
		c.VignetteStrength = 0
		c.TintStrength = 0
		c.BaseColor = texture.MustHex("#FFFFFF")
		return c
	}())
	h := NewHandler(ServerConfig{}, APIV1Deps{Store: store, Seed: 1})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/export", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1024, 1024), img.Bounds())
	r, g, b, _ := img.At(512, 512).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
}

func TestAnalyzeEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/analyze", pngBytes(t, 100, 100, color.RGBA{R: 50, G: 100, B: 200, A: 255}), "image/png")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report analyze.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "#3264c8", report.Dominant)
	require.Len(t, report.Colors, 1)
	assert.Equal(t, 100.0, report.Colors[0].Percentage)

	rec = env.do(http.MethodPost, "/api/v1/analyze", pngBytes(t, 10, 10, color.RGBA{}), "image/png")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/analyze", []byte("hello"), "text/plain")
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	forged := withHeaderSize(pngBytes(t, 1, 1, color.RGBA{A: 255}), 50000, 50000)
	rec = env.do(http.MethodPost, "/api/v1/analyze", forged, "image/png")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/analyze", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	buf, err := raster.New(20)
	require.NoError(t, err)
	buf.Fill(color.RGBA{R: 250, G: 250, B: 250, A: 255})
	env.previews.buf = buf
	rec = env.do(http.MethodGet, "/api/v1/analyze", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "#fafafa", report.Dominant)
}

func TestShareEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/share", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var share shareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &share))
	assert.True(t, strings.HasPrefix(share.URL, "http://frame.local:8080/api/v1/export?config="))

	cfg, err := texture.ParseToken(share.Token)
	require.NoError(t, err)
	assert.Equal(t, env.store.Snapshot().Config, cfg)

	rec = env.do(http.MethodGet, "/api/v1/share.png?size=256", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	rec = env.do(http.MethodGet, "/api/v1/share.png?size=9", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportURL(t *testing.T) {
	cfg := texture.DefaultConfig()
	assert.Equal(t, "http://host/api/v1/export?config="+cfg.Token(), ExportURL("http://host/", cfg))
}

func TestStateAndRegenerate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/state", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st stateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "booting", st.Phase)
	assert.Empty(t, st.Overlays)
	assert.NotNil(t, st.Widgets)

	rec = env.do(http.MethodPost, "/api/v1/regenerate", nil, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, env.previews.triggers)
}

func TestRoutingExtras(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeAPIError(t, rec).Error)

	rec = env.do(http.MethodDelete, "/api/v1/config", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bgenerator_http_requests_total")

	rec = env.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>bgenerator</title>")
}

func TestDevCORS(t *testing.T) {
	h := NewHandler(ServerConfig{DevMode: true}, APIV1Deps{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/config", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
