package server

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// テンプレートは起動時に一度だけ解析する
var (
	errorTmpl   = template.Must(template.ParseFS(templateFS, "templates/error.html"))
	listingTmpl = template.Must(template.ParseFS(templateFS, "templates/listing.html"))
)
