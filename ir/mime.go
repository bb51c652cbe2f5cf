package ir

import "strings"

const textPlain = "text/plain; charset=utf-8"

var mimeTypes = map[string]string{
	"":       textPlain,
	"none":   textPlain,
	"txt":    textPlain,
	"html":   "text/html; charset=utf-8",
	"htm":    "text/html; charset=utf-8",
	"j2":     "text/html; charset=utf-8",
	"jinja":  "text/html; charset=utf-8",
	"jinja2": "text/html; charset=utf-8",
	"xml":    "text/xml; charset=utf-8",
	"svg":    "image/svg+xml",
	"md":     "text/markdown; charset=utf-8",
	"yml":    "application/yaml",
	"yaml":   "application/yaml",
	"json":   "application/json",
	"css":    "text/css; charset=utf-8",
	"js":     "text/javascript; charset=utf-8",
	"csv":    "text/csv; charset=utf-8",
	"tex":    "application/x-tex",
}

// MIMEType returns the content type of a template with the extension ext,
// given without the dot. Unknown extensions are plain text.
func MIMEType(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	return textPlain
}
