package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	cdnsvc "github.com/trezcool/academia/services/cdn"
	"github.com/trezcool/academia/storage/database"
	boiledrepos "github.com/trezcool/academia/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(context.Background(), conf)
	errAndDie(err)

	cli := commandLine{
		db:      db,
		usrRepo: boiledrepos.NewUserRepository(db),
		out:     os.Stdout,
	}
	// the CDN settings are only required to compact
	if len(os.Args) > 1 && os.Args[1] == "compact" {
		signer, err := cdnsvc.NewHMACSigner(conf.CDN)
		errAndDie(err)
		cli.courseSvc = course.NewService(database.NewTransactor(db), sqlxrepos.NewCourseRepository(db), signer)
	}

	// start CLI
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
