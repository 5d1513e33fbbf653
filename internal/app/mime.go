package app

import (
	"log/slog"
	"mime"
)

// staticTypes are the extensions served from /static that minimal container
// images lack in their MIME tables.
var staticTypes = map[string]string{
	".css": "text/css; charset=utf-8",
	".js":  "text/javascript; charset=utf-8",
	".svg": "image/svg+xml",
}

func init() {
	for ext, typ := range staticTypes {
		registerStaticType(ext, typ)
	}
}

func registerStaticType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Default().Warn("register static mime type", slog.String("ext", ext), slog.Any("error", err))
	}
}
