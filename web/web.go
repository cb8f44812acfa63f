// Package web holds the HTML templates, email templates and static assets
// compiled into the binaries.
package web

import "embed"

//go:embed templates static
var FS embed.FS
