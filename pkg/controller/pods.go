package controller

import (
	"net/http"

	"github.com/dfh-cloud/dfh/pkg/exchange"
	"github.com/dfh-cloud/dfh/pkg/service"
	"github.com/labstack/echo/v4"
)

const PodsControllerKey = "PodsController"

type PodsController interface {
	Controller
	List(ctx echo.Context) error
}

type podsController struct {
	PodService service.PodService `inject:"PodService"`
}

func (p *podsController) List(ctx echo.Context) error {
	req := new(exchange.ListPodsRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	pods, err := p.PodService.List(req.Key())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.ListPodsResponse{Data: pods})
}

func (p *podsController) Routes() []Route {
	return []Route{
		{
			Path:    "/:name/:env",
			Method:  http.MethodGet,
			Handler: p.List,
		},
	}
}

func (p *podsController) Group() string {
	return "pods"
}
