// Package dbmigrations exposes the embedded SQL migrations bundled into
// herald binaries.
package dbmigrations

import "embed"

//go:embed *.sql
var Files embed.FS
