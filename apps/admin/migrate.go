package main

import "github.com/trezcool/academia/storage/database"

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrate(args []string) error {
	return runMigrationsFunc(args[0], cli.db.DB, args[1:]...)
}
