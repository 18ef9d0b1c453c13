// Package migrations embeds the bridge's SQL migration files into the binary
// so a deployment needs nothing but the executable and its config.
package migrations

import (
	"embed"

	"github.com/nerrad567/fujitsu-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
