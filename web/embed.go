// Package web holds the static upload page.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte
