package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/kubeutil"
	"github.com/dfh-cloud/dfh/pkg/model"
	log "github.com/sirupsen/logrus"
	corev1 "k8s.io/api/core/v1"
)

const PodServiceKey = "PodService"

// PodService condenses the tracked pods of an app into display friendly
// rows.
type PodService interface {
	List(key model.AppKey) ([]model.PodInfo, error)
}

type podService struct {
	Database database.Database `inject:"Database"`
}

func (p *podService) List(key model.AppKey) ([]model.PodInfo, error) {
	tracked, err := p.Database.AppResources(key)
	if err != nil {
		return nil, err
	}

	out := []model.PodInfo{}
	for podKey, manifest := range manifestsOf(tracked, model.KindPod) {
		labels := kubeutil.ManifestLabels(manifest)

		raw, err := json.Marshal(manifest)
		if err != nil {
			continue
		}
		pod := corev1.Pod{}
		if err := json.Unmarshal(raw, &pod); err != nil {
			log.WithField("key", podKey).WithError(err).Warn("Cannot parse tracked pod")
			continue
		}

		info := podInfo(&pod)
		info.Canary = labels[kubeutil.LabelDeploymentType] == kubeutil.DeploymentTypeCanary
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func podInfo(pod *corev1.Pod) model.PodInfo {
	ready := 0
	restarts := int32(0)
	for _, status := range pod.Status.ContainerStatuses {
		if status.Ready {
			ready++
		}
		restarts += status.RestartCount
	}

	age := int64(0)
	if pod.Status.StartTime != nil {
		age = int64(time.Since(pod.Status.StartTime.Time).Seconds())
	}

	return model.PodInfo{
		Name:       pod.Name,
		Ready:      fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers)),
		Restarts:   restarts,
		AgeSeconds: age,
		Phase:      string(pod.Status.Phase),
		Reason:     pod.Status.Reason,
		Message:    pod.Status.Message,
	}
}
