package service

import (
	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/factory"
	"github.com/dfh-cloud/dfh/pkg/model"
)

const PlanServiceKey = "PlanService"

// PlanService compiles the desired state of one app into a DeploymentPlan
// against the currently tracked cluster state. Plans are ephemeral: nothing
// is executed and nothing is stored.
type PlanService interface {
	// Compile plans the transition to `app`. With `remove` set the plan
	// instead tears down every resource the app owns.
	Compile(app model.AppInfo, remove bool) (model.DeploymentPlan, error)
}

type planService struct {
	Database        database.Database       `inject:"Database"`
	ManifestFactory factory.ManifestFactory `inject:"ManifestFactory"`
	DiffService     DiffService             `inject:"DiffService"`
}

func (p *planService) Compile(app model.AppInfo, remove bool) (model.DeploymentPlan, error) {
	tracked, err := p.Database.AppResources(app.Metadata.Key())
	if err != nil {
		return model.DeploymentPlan{}, err
	}

	// Pods are mirrored for observability but belong to the Deployment
	// controller, never to a plan.
	delete(tracked, model.KindPod)

	if remove {
		return p.DiffService.Diff(model.NewGeneratedManifests().Resources, tracked)
	}

	desired, err := p.ManifestFactory.FromAppInfo(app, tracked)
	if err != nil {
		return model.DeploymentPlan{}, err
	}
	return p.DiffService.Diff(desired.Resources, tracked)
}
