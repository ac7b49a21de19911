package controller

import (
	"net/http"

	"github.com/dfh-cloud/dfh/pkg/exchange"
	"github.com/dfh-cloud/dfh/pkg/service"
	"github.com/labstack/echo/v4"
)

const JobsControllerKey = "JobsController"

type JobsController interface {
	Controller
	Get(ctx echo.Context) error
}

type jobsController struct {
	JobService service.JobService `inject:"JobService"`
}

func (j *jobsController) Get(ctx echo.Context) error {
	req := new(exchange.GetJobRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	job, err := j.JobService.Get(req.Id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.GetJobResponse{Data: job})
}

func (j *jobsController) Routes() []Route {
	return []Route{
		{
			Path:    "/:id",
			Method:  http.MethodGet,
			Handler: j.Get,
		},
	}
}

func (j *jobsController) Group() string {
	return "jobs"
}
