package service

import (
	"context"

	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/kube"
	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
)

const ApplyServiceKey = "ApplyService"

// ApplyService executes a DeploymentPlan against the cluster. Applying is
// idempotent: a resource that was already created or already deleted by a
// previous run does not fail the plan.
type ApplyService interface {
	Apply(ctx context.Context, plan model.DeploymentPlan) error
}

type applyService struct {
	KubeClient kube.Client `inject:"KubeClient"`
}

func (a *applyService) Apply(ctx context.Context, plan model.DeploymentPlan) error {
	batch := except.NewBatchError("failed to apply deployment plan")

	for _, create := range plan.Create {
		logger := a.deltaLogger(create.Meta)
		_, err := a.KubeClient.Post(ctx, create.URL, create.Manifest)
		if err != nil && !except.IsAlreadyExists(err) {
			logger.WithError(err).Error("Failed to create resource")
			batch.Add(err)
			continue
		}
		logger.Info("Created resource")
	}

	for _, patch := range plan.Patch {
		logger := a.deltaLogger(patch.Meta)
		if _, err := a.KubeClient.Patch(ctx, patch.URL, patch.Diff); err != nil {
			logger.WithError(err).Error("Failed to patch resource")
			batch.Add(err)
			continue
		}
		logger.Info("Patched resource")
	}

	for _, del := range plan.Delete {
		logger := a.deltaLogger(del.Meta)
		_, err := a.KubeClient.Delete(ctx, del.URL)
		if err != nil && !except.IsNotFound(err) {
			logger.WithError(err).Error("Failed to delete resource")
			batch.Add(err)
			continue
		}
		logger.Info("Deleted resource")
	}

	return batch.OrNil()
}

func (a *applyService) deltaLogger(meta model.ManifestMeta) *log.Entry {
	return log.WithField("kind", meta.Kind).
		WithField("namespace", meta.Namespace).
		WithField("name", meta.Name)
}
