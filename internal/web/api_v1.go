package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rook-computer/bgenerator/internal/analyze"
	"github.com/rook-computer/bgenerator/internal/imageio"
	"github.com/rook-computer/bgenerator/internal/metrics"
	"github.com/rook-computer/bgenerator/internal/overlay"
	"github.com/rook-computer/bgenerator/internal/pipeline"
	"github.com/rook-computer/bgenerator/internal/render"
	"github.com/rook-computer/bgenerator/internal/state"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/widget"
)

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type stateResponse struct {
	Phase          string            `json:"phase"`
	PresetID       string            `json:"presetId,omitempty"`
	Config         texture.Config    `json:"config"`
	Overlays       []overlayResponse `json:"overlays"`
	Widgets        []widget.Widget   `json:"widgets"`
	Preview        state.PreviewInfo `json:"preview"`
	Revision       uint64            `json:"revision"`
	WidgetRevision uint64            `json:"widgetRevision"`
}

type overlayResponse struct {
	overlay.Overlay
	Width  int `json:"width"`
	Height int `json:"height"`
}

type presetResponse struct {
	texture.Preset
	Active bool `json:"active"`
}

type api struct {
	deps APIV1Deps
}

// APIV1Router returns the /api/v1 routes. Paths are relative to the mount
// point.
func APIV1Router(deps APIV1Deps) http.Handler {
	a := &api{deps: deps.withDefaults()}
	r := chi.NewRouter()

	r.Get("/state", a.handleState)

	r.Get("/config", a.handleGetConfig)
	r.Put("/config", a.handlePutConfig)
	r.Patch("/config", a.handlePatchConfig)

	r.Get("/presets", a.handleListPresets)
	r.Post("/presets/{id}/apply", a.handleApplyPreset)

	r.Get("/overlays", a.handleListOverlays)
	r.Post("/overlays", a.handleAddOverlay)
	r.Patch("/overlays/{id}", a.handleUpdateOverlay)
	r.Delete("/overlays/{id}", a.handleRemoveOverlay)

	r.Get("/widgets", a.handleListWidgets)
	r.Post("/widgets", a.handleAddWidget)
	r.Patch("/widgets/{id}", a.handleUpdateWidget)
	r.Delete("/widgets/{id}", a.handleRemoveWidget)

	r.Get("/preview.png", a.handlePreview)
	r.Post("/regenerate", a.handleRegenerate)
	r.Get("/export", a.handleExport)
	r.Get("/share", a.handleShare)
	r.Get("/share.png", a.handleSharePNG)

	r.Get("/analyze", a.handleAnalyzePreview)
	r.Post("/analyze", a.handleAnalyzeUpload)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}

func (a *api) handleState(w http.ResponseWriter, r *http.Request) {
	snap := a.deps.Store.Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{
		Phase:          snap.Phase.String(),
		PresetID:       snap.PresetID,
		Config:         snap.Config,
		Overlays:       overlayResponses(snap.Overlays),
		Widgets:        nonNilWidgets(snap.Widgets),
		Preview:        snap.Preview,
		Revision:       snap.Revision,
		WidgetRevision: snap.WidgetRevision,
	})
}

func (a *api) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deps.Store.Snapshot().Config)
}

// PUT replaces the whole config; omitted fields take their defaults.
func (a *api) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	a.storeConfig(w, r, texture.DefaultConfig())
}

// PATCH changes only the fields present in the body.
func (a *api) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	a.storeConfig(w, r, a.deps.Store.Snapshot().Config)
}

func (a *api) storeConfig(w http.ResponseWriter, r *http.Request, cfg texture.Config) {
	if err := decodeJSON(r, &cfg); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := cfg.Validate(); err != nil {
		writeAPIError(w, http.StatusUnprocessableEntity, "invalid_config", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.deps.Store.SetConfig(cfg))
}

func (a *api) handleListPresets(w http.ResponseWriter, r *http.Request) {
	if a.deps.Presets == nil {
		writeJSON(w, http.StatusOK, []presetResponse{})
		return
	}
	active := a.deps.Store.Snapshot().PresetID
	list := a.deps.Presets.List()
	out := make([]presetResponse, 0, len(list))
	for _, p := range list {
		out = append(out, presetResponse{Preset: p, Active: p.ID == active})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	if a.deps.Presets == nil {
		writeAPIError(w, http.StatusNotImplemented, "not_implemented", "presets not configured")
		return
	}
	p, err := a.deps.Presets.Find(chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "unknown_preset", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.deps.Store.ApplyPreset(p))
}

func (a *api) handleListOverlays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, overlayResponses(a.deps.Store.Snapshot().Overlays))
}

// handleAddOverlay accepts a multipart form with the image in "file" and
// optional opacity, scale, x and y fields.
func (a *api) handleAddOverlay(w http.ResponseWriter, r *http.Request) {
	if a.deps.Store.OverlayCount() >= overlay.MaxOverlays {
		metrics.RecordUpload("", "rejected")
		writeAPIError(w, http.StatusConflict, "overlay_limit", overlay.ErrCapacity.Error())
		return
	}

	data, err := a.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	contentType, err := imageio.Sniff(data)
	if err != nil {
		metrics.RecordUpload("", "unsupported")
		writeAPIError(w, http.StatusUnsupportedMediaType, "unsupported_type", err.Error())
		return
	}
	placement, err := placementFromForm(r, overlay.DefaultPlacement())
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_placement", err.Error())
		return
	}

	img, err := a.deps.decoder().DecodeAsync(data).Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; the pending result is dropped.
			return
		}
		metrics.RecordUpload(contentType, "decode_error")
		a.deps.Logger.Errorf("web", "overlay decode failed: %v", err)
		writeDecodeError(w, err)
		return
	}

	o, err := a.deps.Store.AddOverlay(img, placement)
	if err != nil {
		if errors.Is(err, overlay.ErrCapacity) {
			metrics.RecordUpload(contentType, "rejected")
			writeAPIError(w, http.StatusConflict, "overlay_limit", err.Error())
			return
		}
		writeAPIError(w, http.StatusInternalServerError, "overlay_failed", err.Error())
		return
	}
	metrics.RecordUpload(contentType, "ok")
	metrics.SetOverlays(a.deps.Store.OverlayCount())
	writeJSON(w, http.StatusCreated, newOverlayResponse(o))
}

func (a *api) handleUpdateOverlay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current := overlay.DefaultPlacement()
	for _, o := range a.deps.Store.Snapshot().Overlays {
		if o.ID == id {
			current = o.Placement
		}
	}
	if err := decodeJSON(r, &current); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	o, err := a.deps.Store.UpdateOverlay(id, current)
	if err != nil {
		writeNotFoundOr500(w, err, overlay.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newOverlayResponse(o))
}

func (a *api) handleRemoveOverlay(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Store.RemoveOverlay(chi.URLParam(r, "id")); err != nil {
		writeNotFoundOr500(w, err, overlay.ErrNotFound)
		return
	}
	metrics.SetOverlays(a.deps.Store.OverlayCount())
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (a *api) handleListWidgets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNilWidgets(a.deps.Store.Snapshot().Widgets))
}

func (a *api) handleAddWidget(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Kind string `json:"type"`
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	kind, err := widget.ParseKind(body.Kind)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_widget", err.Error())
		return
	}

	// Start from the kind's defaults, then overlay whatever the body sets.
	wd := widget.New(kind)
	if err := json.Unmarshal(raw, &wd); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	wd.ID = ""
	wd.Kind = kind
	writeJSON(w, http.StatusCreated, a.deps.Store.AddWidget(wd))
}

func (a *api) handleUpdateWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var current widget.Widget
	found := false
	for _, wd := range a.deps.Store.Snapshot().Widgets {
		if wd.ID == id {
			current, found = wd, true
		}
	}
	if !found {
		writeAPIError(w, http.StatusNotFound, "not_found", fmt.Sprintf("%v: %s", widget.ErrNotFound, id))
		return
	}
	if err := decodeJSON(r, &current); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	updated, err := a.deps.Store.UpdateWidget(id, current)
	if err != nil {
		writeNotFoundOr500(w, err, widget.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *api) handleRemoveWidget(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Store.RemoveWidget(chi.URLParam(r, "id")); err != nil {
		writeNotFoundOr500(w, err, widget.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handlePreview serves the published preview. Widgets are not part of it;
// they belong to the live display layer.
func (a *api) handlePreview(w http.ResponseWriter, r *http.Request) {
	buf := a.deps.Previews.Latest()
	if buf == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "no_preview", errNoPreview.Error())
		return
	}
	var out bytes.Buffer
	if err := png.Encode(&out, buf.Image()); err != nil {
		writeAPIError(w, http.StatusInternalServerError, "encode_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Preview-Generation", strconv.FormatUint(a.deps.Store.Snapshot().Preview.Generation, 10))
	_, _ = w.Write(out.Bytes())
}

func (a *api) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	a.deps.Previews.Trigger()
	writeJSON(w, http.StatusAccepted, okResponse{OK: true})
}

// handleExport renders the session (or the config in ?config=) with widgets
// and returns the encoded file. ?format= overrides the export format.
func (a *api) handleExport(w http.ResponseWriter, r *http.Request) {
	snap := a.deps.Store.Snapshot()
	cfg := snap.Config
	shared := false
	if token := r.URL.Query().Get("config"); token != "" {
		parsed, err := texture.ParseToken(token)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_config", err.Error())
			return
		}
		cfg, shared = parsed, true
	}
	if raw := r.URL.Query().Get("format"); raw != "" {
		f, err := texture.ParseFormat(raw)
		if err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid_format", err.Error())
			return
		}
		cfg.ExportFormat = f
	}

	start := time.Now()
	res, err := a.deps.Exporter.Export(pipeline.Request{
		Config:   cfg,
		Overlays: snap.Overlays,
		Widgets:  snap.Widgets,
	}, a.deps.noiseSource())
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordRender(pipeline.Export.String(), strconv.Itoa(cfg.CanvasSize), status, time.Since(start).Seconds())
	metrics.RecordExport(string(cfg.ExportFormat), status, len(res.Data))
	if err != nil {
		a.deps.Logger.Errorf("web", "export failed: %v", err)
		code := http.StatusInternalServerError
		if errors.Is(err, texture.ErrInvalidConfig) {
			code = http.StatusUnprocessableEntity
		}
		writeAPIError(w, code, "export_failed", err.Error())
		return
	}

	setDownloadHeaders(w, res.Filename, res.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	_, _ = w.Write(res.Data)

	// A download redraws the session's grain, as the panel did after saving.
	if !shared {
		a.deps.Previews.Trigger()
	}
}

type shareResponse struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

func (a *api) handleShare(w http.ResponseWriter, r *http.Request) {
	cfg := a.deps.Store.Snapshot().Config
	writeJSON(w, http.StatusOK, shareResponse{URL: ExportURL(a.baseURL(r), cfg), Token: cfg.Token()})
}

func (a *api) handleSharePNG(w http.ResponseWriter, r *http.Request) {
	size := 256
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			writeAPIError(w, http.StatusBadRequest, "invalid_size", "size must be between 64 and 1024")
			return
		}
		size = n
	}
	data, err := render.GenerateQRCodePNG(ExportURL(a.baseURL(r), a.deps.Store.Snapshot().Config), size)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "qrcode_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (a *api) handleAnalyzePreview(w http.ResponseWriter, r *http.Request) {
	buf := a.deps.Previews.Latest()
	if buf == nil {
		writeAPIError(w, http.StatusServiceUnavailable, "no_preview", errNoPreview.Error())
		return
	}
	a.writeReport(w, buf.Image())
}

// handleAnalyzeUpload accepts either a multipart form with "file" or the raw
// image as the body.
func (a *api) handleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	data, err := a.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	img, err := a.deps.decoder().DecodeAsync(data).Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		writeDecodeError(w, err)
		return
	}
	a.writeReport(w, img)
}

func (a *api) writeReport(w http.ResponseWriter, img image.Image) {
	report, err := analyze.Analyze(img, analyze.DefaultOptions())
	if err != nil {
		if errors.Is(err, analyze.ErrNoSamples) {
			writeAPIError(w, http.StatusUnprocessableEntity, "no_samples", err.Error())
			return
		}
		writeAPIError(w, http.StatusInternalServerError, "analyze_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *api) baseURL(r *http.Request) string {
	if a.deps.PublicURL != "" {
		return a.deps.PublicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// ExportURL is the link that downloads an export of cfg from the server at
// base.
func ExportURL(base string, cfg texture.Config) string {
	return strings.TrimRight(base, "/") + "/api/v1/export?config=" + url.QueryEscape(cfg.Token())
}

var errMissingFile = errors.New(`multipart form has no "file" part`)

// readUpload returns the image bytes from a multipart "file" part or, for
// other content types, the raw body. Bodies over MaxUploadBytes fail.
func (a *api) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, a.deps.MaxUploadBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}
	if err := r.ParseMultipartForm(a.deps.MaxUploadBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errMissingFile
		}
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeAPIError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
	case errors.Is(err, errMissingFile):
		writeAPIError(w, http.StatusBadRequest, "missing_file", err.Error())
	default:
		writeAPIError(w, http.StatusBadRequest, "invalid_upload", err.Error())
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, imageio.ErrTooLarge):
		writeAPIError(w, http.StatusRequestEntityTooLarge, "image_too_large", err.Error())
	case errors.Is(err, imageio.ErrUnsupportedType):
		writeAPIError(w, http.StatusUnsupportedMediaType, "unsupported_type", err.Error())
	default:
		writeAPIError(w, http.StatusUnprocessableEntity, "decode_failed", err.Error())
	}
}

func placementFromForm(r *http.Request, p overlay.Placement) (overlay.Placement, error) {
	fields := []struct {
		name string
		dst  *float64
	}{
		{"opacity", &p.Opacity},
		{"scale", &p.Scale},
		{"x", &p.X},
		{"y", &p.Y},
	}
	for _, f := range fields {
		raw := r.FormValue(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return p, nil
}

func overlayResponses(list []overlay.Overlay) []overlayResponse {
	out := make([]overlayResponse, 0, len(list))
	for _, o := range list {
		out = append(out, newOverlayResponse(o))
	}
	return out
}

func newOverlayResponse(o overlay.Overlay) overlayResponse {
	resp := overlayResponse{Overlay: o}
	if o.Image != nil {
		resp.Width = o.Image.Rect.Dx()
		resp.Height = o.Image.Rect.Dy()
	}
	return resp
}

func nonNilWidgets(list []widget.Widget) []widget.Widget {
	if list == nil {
		return []widget.Widget{}
	}
	return list
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeNotFoundOr500(w http.ResponseWriter, err, notFound error) {
	if errors.Is(err, notFound) {
		writeAPIError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeAPIError(w, http.StatusInternalServerError, "internal", err.Error())
}

func setDownloadHeaders(w http.ResponseWriter, filename, contentType string) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	cd := mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	w.Header().Set("Content-Disposition", cd)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: code, Message: message})
}
