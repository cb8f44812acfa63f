package handlers

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"path"
	"time"

	"crimewatch/internal/utils"
	"crimewatch/internal/validation"

	"github.com/gin-contrib/multitemplate"
)

// pages maps the names handlers render to their view files.
var pages = map[string]string{
	"auth/login.html":       "views/auth/login.html",
	"auth/register.html":    "views/auth/register.html",

	"auth/password_reset.html":          "views/auth/password_reset.html",
	"auth/password_reset_done.html":     "views/auth/password_reset_done.html",
	"auth/password_reset_confirm.html":  "views/auth/password_reset_confirm.html",
	"auth/password_reset_complete.html": "views/auth/password_reset_complete.html",

	"report/dashboard.html": "views/report/dashboard.html",
	"report/create.html":    "views/report/create.html",
	"report/edit.html":      "views/report/edit.html",
	"error.html":            "views/error.html",
}

// TemplateFuncs returns the helpers available to every page. loc is the zone
// report timestamps are shown in.
func TemplateFuncs(loc *time.Location) template.FuncMap {
	if loc == nil {
		loc = time.Local
	}
	return template.FuncMap{
		"fieldErrors": func(errs any, field string) []string {
			if e, ok := errs.(validation.Errors); ok {
				return e.For(field)
			}
			return nil
		},
		"formatTime": func(t time.Time) string {
			return t.In(loc).Format("2006-01-02 15:04")
		},
		"markdown": utils.RenderMarkdown,
		"basename": path.Base,
		"urlquery": url.QueryEscape,
	}
}

// LoadTemplates assembles every page from the layouts, includes and components
// below templates/ in fsys, followed by its view.
func LoadTemplates(fsys fs.FS, funcs template.FuncMap) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	var shared []string
	for _, pattern := range []string{"templates/layouts/*.html", "templates/includes/*.html", "templates/components/*.html"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}
		shared = append(shared, matches...)
	}
	if len(shared) == 0 {
		return nil, fmt.Errorf("no layouts found")
	}

	for name, view := range pages {
		files := append(append([]string{}, shared...), "templates/"+view)
		tmpl, err := template.New(path.Base(shared[0])).Funcs(funcs).ParseFS(fsys, files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.Add(name, tmpl)
	}
	return r, nil
}
