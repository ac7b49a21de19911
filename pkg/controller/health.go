package controller

import (
	"net/http"

	"github.com/dfh-cloud/dfh/pkg/exchange"
	"github.com/dfh-cloud/dfh/pkg/service"
	"github.com/labstack/echo/v4"
)

const HealthControllerKey = "HealthController"

type HealthController interface {
	Controller
	Get(ctx echo.Context) error
}

type healthController struct {
	WatchRunner service.WatchRunner `inject:"WatchRunner"`
}

// Get reports 200 while every watch stream runs and 503 once any of them
// has died, so orchestrators restart a process whose cluster mirror went
// stale.
func (h *healthController) Get(ctx echo.Context) error {
	streams := map[string]string{}
	for kind, state := range h.WatchRunner.Health() {
		streams[kind] = string(state)
	}

	res := exchange.HealthResponse{Status: "ok", Streams: streams}
	status := http.StatusOK
	if !h.WatchRunner.Healthy() {
		res.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	return ctx.JSON(status, res)
}

func (h *healthController) Routes() []Route {
	return []Route{
		{
			Path:    "",
			Method:  http.MethodGet,
			Handler: h.Get,
		},
	}
}

func (h *healthController) Group() string {
	return "health"
}
