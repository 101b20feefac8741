// Package migrations embeds the SQL schema files.
package migrations

import (
	"embed"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var FS embed.FS

// Source returns the embedded files as a golang-migrate source driver.
func Source() (source.Driver, error) {
	return iofs.New(FS, ".")
}
