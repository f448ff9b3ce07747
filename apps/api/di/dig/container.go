package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/tutorcenter/apps/api/echo"
	"github.com/trezcool/tutorcenter/core"
	"github.com/trezcool/tutorcenter/core/attendance"
	logsvc "github.com/trezcool/tutorcenter/services/logger"
	"github.com/trezcool/tutorcenter/storage"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type storageParams struct {
	dig.In
	Conf   *core.Config
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	AttendanceSvc attendance.ServiceInterface
	Validate      *validator.Validate
	Translator    ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStorage(p storageParams) *storage.Backend {
	b, err := storage.Open(context.Background(), p.Conf, p.Logger)
	if err != nil {
		p.Logger.Fatal(fmt.Sprintf("setting up %s storage: %v", p.Conf.Storage, err), err)
	}
	return b
}

func newAttendanceService(b *storage.Backend, logger core.Logger, conf *core.Config) *attendance.Service {
	return attendance.NewService(b.Repo, b.Repo, b.Centers, logger, conf)
}

func newServer(p serverParams) *echoapi.Server {
	core.InitValidators(p.Validate, p.Translator)
	attendance.InitValidators(p.Validate, p.Translator)

	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		AttendanceSvc: p.AttendanceSvc,
		Validate:      p.Validate,
		Translator:    p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newAttendanceService, dig.As(new(attendance.ServiceInterface))))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
