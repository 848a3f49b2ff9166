package api

import (
	"embed"
	"html/template"
)

//go:embed templates/*
var templateFS embed.FS

func newTemplates() *template.Template {
	return template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))
}
