package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	logsvc "github.com/trezcool/tutorcenter/services/logger"
	"github.com/trezcool/tutorcenter/storage"
)

var logger *logsvc.RollbarLogger

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger = logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up storage
	backend, err := storage.Open(context.Background(), conf, logger)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		conf:    conf,
		backend: backend,
		svc:     attendance.NewService(backend.Repo, backend.Repo, backend.Centers, logger, conf),
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	_ = backend.Close()
	if err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %+v\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
