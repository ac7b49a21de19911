package exchange

import (
	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/model"
)

type CreateAppRequest struct {
	App model.AppInfo `json:"app"`
}

func (c *CreateAppRequest) Validate() error {
	return validateAppInfo(&c.App)
}

type CreateAppResponse struct {
	Data model.AppInfo `json:"data"`
}

type UpdateAppRequest struct {
	Name string `param:"name"`
	Env  string `param:"env"`

	App model.AppInfo `json:"app"`
}

func (u *UpdateAppRequest) Validate() error {
	if err := validateAppInfo(&u.App); err != nil {
		return err
	}
	// The path owns the app identity. A body that claims a different app
	// is a client bug, not a rename.
	if u.Name != u.App.Metadata.Name || u.Env != u.App.Metadata.Env {
		return except.NewError("app %s/%s in the body does not match %s/%s in the path",
			except.ErrInvalid, u.App.Metadata.Name, u.App.Metadata.Env, u.Name, u.Env)
	}
	return nil
}

type GetAppRequest struct {
	Name string `param:"name"`
	Env  string `param:"env"`
}

func (g *GetAppRequest) Key() model.AppKey {
	return model.AppKey{Name: g.Name, Env: g.Env}
}

type GetAppResponse struct {
	Data model.AppInfo `json:"data"`
}

type ListAppsResponse struct {
	Data []model.AppEnvOverview `json:"data"`
}

// DeployAppRequest compiles and queues the plan that reconciles the cluster
// with the app's stored desired state. With Remove set the plan tears the
// app down instead.
type DeployAppRequest struct {
	Name string `param:"name"`
	Env  string `param:"env"`

	Remove bool `query:"remove"`
}

// PlanAppRequest is the dry run twin of DeployAppRequest: the plan is
// compiled and returned but never queued.
type PlanAppRequest struct {
	Name string `param:"name"`
	Env  string `param:"env"`

	Remove bool `query:"remove"`
}

// DeploymentPlanResponse carries the compiled plan. JobId is empty for dry
// runs.
type DeploymentPlanResponse struct {
	JobId string               `json:"job_id,omitempty"`
	Data  model.DeploymentPlan `json:"data"`
}

func validateAppInfo(app *model.AppInfo) error {
	meta := app.Metadata
	if meta.Name == "" || meta.Env == "" || meta.Namespace == "" {
		return except.NewError("app name, env and namespace are required", except.ErrInvalid)
	}
	if app.Primary.Deployment.Image == "" {
		return except.NewError("primary deployment image is required", except.ErrInvalid)
	}
	if app.HasCanary {
		if app.Canary.Deployment.Image == "" {
			return except.NewError("canary deployment image is required", except.ErrInvalid)
		}
		if app.Canary.TrafficPercent < 0 || app.Canary.TrafficPercent > 100 {
			return except.NewError("canary traffic percentage must be within [0, 100], got %d",
				except.ErrInvalid, app.Canary.TrafficPercent)
		}
	}
	return nil
}
