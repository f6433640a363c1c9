// Package migrations embeds the hub's SQL migration files into the binary.
//
// The files are compiled into the executable, so the hub can migrate its
// database without the SQL present on disk.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the embedded migrations, rooted so that filenames sit at ".".
func FS() fs.FS {
	return files
}
