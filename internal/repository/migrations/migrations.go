// Package migrations embeds the CQL schema, one directory per keyspace.
package migrations

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed users/*.cql products/*.cql orders/*.cql
var files embed.FS

// Keyspaces lists the migration sets in the order they should be applied.
var Keyspaces = []string{"users", "products", "orders"}

// Source returns the migrations of one keyspace set ("users", "products" or "orders").
func Source(set string) (source.Driver, error) {
	for _, known := range Keyspaces {
		if known == set {
			return iofs.New(files, set)
		}
	}
	return nil, fmt.Errorf("unknown migration set %q", set)
}
