package assets

import (
	"embed"
	"io/fs"
)

// PresetsYAML is the built-in preset catalog.
//
//go:embed presets.yaml
var PresetsYAML []byte

//go:embed web
var webFS embed.FS

// WebUI is an embedded filesystem rooted at internal/assets/web.
var WebUI fs.FS

func init() {
	// Embed paths include the leading directory; strip it for serving at '/'.
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	WebUI = sub
}
