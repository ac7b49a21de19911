package service

import (
	"testing"

	"github.com/dfh-cloud/dfh/pkg/config"
	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/factory"
	"github.com/dfh-cloud/dfh/pkg/model"
	"github.com/stretchr/testify/suite"
)

type PlanTestSuite struct {
	suite.Suite

	db   database.Database
	plan PlanService
}

func (p *PlanTestSuite) SetupTest() {
	conf := &config.Config{
		Apps: config.Apps{ManagedBy: "dfh", EnvLabel: "env"},
	}
	p.db = database.NewDatabase(database.Spec{ManagedBy: "dfh", EnvLabel: "env"})
	p.plan = &planService{
		Database:        p.db,
		ManifestFactory: factory.NewManifestFactory(conf),
		DiffService:     &diffService{},
	}
}

func planApp() model.AppInfo {
	return model.AppInfo{
		Metadata: model.AppMetadata{Name: "nginx", Env: "stg", Namespace: "demo"},
		Primary: model.AppPrimary{
			Deployment: model.DeploymentInfo{Name: "nginx", Image: "nginx:v1"},
		},
	}
}

// applyPlanToMirror simulates the cluster converging: every created
// manifest shows up as a tracked resource, exactly as a watch event would
// deliver it.
func (p *PlanTestSuite) applyPlanToMirror(plan model.DeploymentPlan) {
	for _, create := range plan.Create {
		p.db.Upsert(create.Meta.Kind, create.Manifest)
	}
}

func (p *PlanTestSuite) TestDeployPatchCanaryScenario() {
	// -- Given
	//
	app := planApp()
	p.Require().NoError(p.db.CreateApp(app))

	// -- When
	//
	// First rollout: nothing exists yet.
	plan, err := p.plan.Compile(app, false)

	// -- Then
	//
	p.Require().NoError(err)
	p.Require().Len(plan.Create, 1)
	p.Empty(plan.Patch)
	p.Empty(plan.Delete)
	p.Equal(model.KindDeployment, plan.Create[0].Meta.Kind)

	// -- When
	//
	// The cluster converged; replanning the same state is a no-op.
	p.applyPlanToMirror(plan)
	plan, err = p.plan.Compile(app, false)

	// -- Then
	//
	p.Require().NoError(err)
	p.True(plan.Empty())

	// -- When
	//
	// Bump the image: a single patch.
	app.Primary.Deployment.Image = "nginx:v2"
	plan, err = p.plan.Compile(app, false)

	// -- Then
	//
	p.Require().NoError(err)
	p.Empty(plan.Create)
	p.Require().Len(plan.Patch, 1)
	p.Equal(model.KindDeployment, plan.Patch[0].Meta.Kind)

	// -- When
	//
	// Add a 20% canary: canary deployment plus the istio pair.
	app.HasCanary = true
	app.Canary.Deployment = model.DeploymentInfo{Name: "nginx", Image: "nginx:v1"}
	app.Canary.TrafficPercent = 20
	plan, err = p.plan.Compile(app, false)

	// -- Then
	//
	p.Require().NoError(err)
	p.Len(plan.Create, 3)
	kinds := map[string]bool{}
	for _, create := range plan.Create {
		kinds[create.Meta.Kind] = true
	}
	p.True(kinds[model.KindDeployment])
	p.True(kinds[model.KindVirtualService])
	p.True(kinds[model.KindDestinationRule])
}

func (p *PlanTestSuite) TestRemovePlanTearsDownTrackedResources() {
	// -- Given
	//
	app := planApp()
	p.Require().NoError(p.db.CreateApp(app))

	plan, err := p.plan.Compile(app, false)
	p.Require().NoError(err)
	p.applyPlanToMirror(plan)

	// -- When
	//
	plan, err = p.plan.Compile(app, true)

	// -- Then
	//
	p.Require().NoError(err)
	p.Empty(plan.Create)
	p.Empty(plan.Patch)
	p.Require().Len(plan.Delete, 1)
	p.Equal(model.KindDeployment, plan.Delete[0].Meta.Kind)
	p.Equal("/apis/apps/v1/namespaces/demo/deployments/nginx", plan.Delete[0].URL)
}

func (p *PlanTestSuite) TestPodsAreNeverPlanned() {
	// -- Given
	//
	app := planApp()
	p.Require().NoError(p.db.CreateApp(app))

	// A tracked pod belonging to the app must never show up as a delete.
	p.db.Upsert(model.KindPod, model.Manifest{
		"apiVersion": "v1",
		"kind":       model.KindPod,
		"metadata": map[string]interface{}{
			"name":      "nginx-abc123",
			"namespace": "demo",
			"labels": map[string]interface{}{
				"app":                          "nginx",
				"app.kubernetes.io/name":       "nginx",
				"app.kubernetes.io/managed-by": "dfh",
				"env":                          "stg",
			},
		},
	})

	// -- When
	//
	plan, err := p.plan.Compile(app, true)

	// -- Then
	//
	p.Require().NoError(err)
	p.Empty(plan.Delete)
}

func TestPlanTestSuite(t *testing.T) {
	suite.Run(t, new(PlanTestSuite))
}
