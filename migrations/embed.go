// Package migrations embeds the SQL schema into the binary and registers it
// with the database package. Import it for side effects:
//
//	import _ "github.com/nerrad567/printwatch/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/printwatch/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(migrationsFS, ".")
}
