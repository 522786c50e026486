package static

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
)

//go:embed static/*
var StaticFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS

// Assets returns the embedded assets served under /static.
func Assets() (fs.FS, error) {
	assets, err := fs.Sub(StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded assets: %w", err)
	}
	return assets, nil
}

// Templates parses the embedded page templates. Pages are named after their file.
func Templates(funcs template.FuncMap) (*template.Template, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	return tmpl, nil
}
