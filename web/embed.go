// Package web embeds the close-approach dashboard served at "/".
package web

import "embed"

// Content holds the dashboard shell, its script and stylesheet. The script
// talks to /api/v1/options, /api/v1/approaches and /api/v1/chart.
//
//go:embed index.html app.js styles.css
var Content embed.FS
