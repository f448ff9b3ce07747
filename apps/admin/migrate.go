package main

import (
	"errors"

	"github.com/pressly/goose/v3"

	"github.com/trezcool/tutorcenter/storage/database"
)

var gooseRunFunc = goose.Run // mockable

var errNoMigrations = errors.New("migrations only apply to the postgres storage")

// migrate runs a goose command against the embedded migrations.
func (cli *commandLine) migrate(args []string) error {
	if cli.backend.SQL == nil {
		return errNoMigrations
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.backend.SQL, database.MigrationsDir, arguments...)
}
