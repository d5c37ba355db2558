package http

import (
	"embed"
	"html/template"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

// pages holds every server-rendered template. html/template contextual
// escaping is what keeps user-supplied names safe in the rendered output.
var pages = template.Must(template.ParseFS(templateFS, "templates/*.gohtml"))
