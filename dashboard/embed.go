// Package dashboard provides the embedded status page for sbar.
//
// The page shows the live bar and its items, fed by the Server-Sent Events
// stream of the status server. It is compiled into the binary with the
// embed directive, so no asset files need to be installed.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the status page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Status page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
