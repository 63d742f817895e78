// Package migrations embeds the schema of both stores. Each store keeps its
// own migration history table so they can live in one database or two.
package migrations

import "embed"

//go:embed catalog/*.sql
var Catalog embed.FS

//go:embed orders/*.sql
var Orders embed.FS
