package controller

import (
	"net/http"

	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/exchange"
	"github.com/dfh-cloud/dfh/pkg/model"
	"github.com/dfh-cloud/dfh/pkg/service"
	"github.com/labstack/echo/v4"
)

const AppsControllerKey = "AppsController"

type AppsController interface {
	Controller
	List(ctx echo.Context) error
	Get(ctx echo.Context) error
	Create(ctx echo.Context) error
	Update(ctx echo.Context) error
	Delete(ctx echo.Context) error
	Plan(ctx echo.Context) error
	Deploy(ctx echo.Context) error
}

type appsController struct {
	Database    database.Database   `inject:"Database"`
	PlanService service.PlanService `inject:"PlanService"`
	JobService  service.JobService  `inject:"JobService"`
}

func (a *appsController) List(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, exchange.ListAppsResponse{Data: a.Database.Overview()})
}

func (a *appsController) Get(ctx echo.Context) error {
	req := new(exchange.GetAppRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	app, err := a.Database.GetApp(req.Key())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.GetAppResponse{Data: app})
}

func (a *appsController) Create(ctx echo.Context) error {
	req := new(exchange.CreateAppRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := a.Database.CreateApp(req.App); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, exchange.CreateAppResponse{Data: req.App})
}

func (a *appsController) Update(ctx echo.Context) error {
	req := new(exchange.UpdateAppRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := a.Database.SetAppInfo(req.App); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.GetAppResponse{Data: req.App})
}

func (a *appsController) Delete(ctx echo.Context) error {
	req := new(exchange.GetAppRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	if err := a.Database.DeleteApp(req.Key()); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusOK)
}

// Plan is the dry run: it compiles and returns the DeploymentPlan without
// queueing it.
func (a *appsController) Plan(ctx echo.Context) error {
	req := new(exchange.PlanAppRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	app, err := a.Database.GetApp(model.AppKey{Name: req.Name, Env: req.Env})
	if err != nil {
		return err
	}

	plan, err := a.PlanService.Compile(app, req.Remove)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, exchange.DeploymentPlanResponse{Data: plan})
}

func (a *appsController) Deploy(ctx echo.Context) error {
	req := new(exchange.DeployAppRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	app, err := a.Database.GetApp(model.AppKey{Name: req.Name, Env: req.Env})
	if err != nil {
		return err
	}

	plan, err := a.PlanService.Compile(app, req.Remove)
	if err != nil {
		return err
	}

	jobId := ""
	if !plan.Empty() {
		jobId, err = a.JobService.Submit(plan)
		if err != nil {
			return err
		}
	}
	return ctx.JSON(http.StatusAccepted, exchange.DeploymentPlanResponse{JobId: jobId, Data: plan})
}

func (a *appsController) Routes() []Route {
	return []Route{
		{
			Path:    "",
			Method:  http.MethodGet,
			Handler: a.List,
		},
		{
			Path:    "",
			Method:  http.MethodPost,
			Handler: a.Create,
		},
		{
			Path:    "/:name/:env",
			Method:  http.MethodGet,
			Handler: a.Get,
		},
		{
			Path:    "/:name/:env",
			Method:  http.MethodPut,
			Handler: a.Update,
		},
		{
			Path:    "/:name/:env",
			Method:  http.MethodDelete,
			Handler: a.Delete,
		},
		{
			Path:    "/:name/:env/plan",
			Method:  http.MethodGet,
			Handler: a.Plan,
		},
		{
			Path:    "/:name/:env/deploy",
			Method:  http.MethodPost,
			Handler: a.Deploy,
		},
	}
}

func (a *appsController) Group() string {
	return "apps"
}
