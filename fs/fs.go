// Package appfs embeds files needed at runtime regardless of the working
// directory, notably the goose migrations.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
