package pkg

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/dfh-cloud/dfh/pkg/config"
	"github.com/dfh-cloud/dfh/pkg/controller"
	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/service"
	"github.com/eddieowens/axon"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

const AppKey = "App"

type App interface {
	Start() error
}

type app struct {
	Controllers []axon.Instance     `inject:"Controllers"`
	Config      *config.Config      `inject:"Config"`
	WatchRunner service.WatchRunner `inject:"WatchRunner"`
	JobService  service.JobService  `inject:"JobService"`
}

func (a *app) Start() error {
	a.WatchRunner.Start()

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go a.JobService.Start(jobCtx)

	e := echo.New()
	if log.GetLevel() >= log.DebugLevel {
		e.Use(middleware.Logger(), middleware.Recover())
	}

	e.Use(middleware.CORS())
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customHTTPErrorHandler(e.DefaultHTTPErrorHandler)

	api := e.Group("/api")
	for _, v := range a.Controllers {
		c := v.GetStructPtr().(controller.Controller)

		for _, r := range c.Routes() {
			group := api.Group(path.Join("/", c.Group()))
			group.Add(r.Method, r.Path, r.Handler)
		}
	}

	errs := make(chan error, 1)
	go func() {
		log.WithField("port", a.Config.Server.Port).Info("Started API server")
		errs <- e.Start(fmt.Sprintf(":%d", a.Config.Server.Port))
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var err error
	select {
	case err = <-errs:
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("Shutting down")
	}

	cancelJobs()
	a.WatchRunner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := e.Shutdown(ctx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

func customHTTPErrorHandler(defaultHandler echo.HTTPErrorHandler) echo.HTTPErrorHandler {
	return func(err error, context echo.Context) {
		status := except.ToHttpStatus(err)
		if v, ok := err.(*echo.HTTPError); ok {
			defaultHandler(v, context)
		} else {
			if status == http.StatusInternalServerError {
				defaultHandler(echo.NewHTTPError(status, http.StatusText(status)), context)
			} else {
				defaultHandler(echo.NewHTTPError(status, err.Error()), context)
			}
		}
		log.WithField("code", status).WithError(err).Trace("An error occurred")
	}
}
