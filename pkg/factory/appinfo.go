package factory

import (
	"encoding/json"
	"strings"

	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/kubeutil"
	"github.com/dfh-cloud/dfh/pkg/model"
	corev1 "k8s.io/api/core/v1"
)

// AppInfoFromManifests rebuilds the declarative AppInfo from the tracked
// manifests of one app. The result must survive a round trip: generating
// manifests from it and reversing those again yields the same AppInfo.
func (m *manifestFactory) AppInfoFromManifests(tracked map[string]*model.WatchedResource) (model.AppInfo, error) {
	app := model.AppInfo{}

	deployments := trackedKind(tracked, model.KindDeployment)
	if len(deployments) == 0 {
		return app, except.NewError("no deployment manifests to derive the app from", except.ErrInvalid)
	}

	meta, err := m.agreeingMetadata(tracked)
	if err != nil {
		return app, err
	}
	app.Metadata = meta

	sawPrimary, sawCanary := false, false
	for _, manifest := range deployments {
		labels := kubeutil.ManifestLabels(manifest)
		canary := labels[kubeutil.LabelDeploymentType] == kubeutil.DeploymentTypeCanary

		info, err := deploymentInfo(manifest)
		if err != nil {
			return app, err
		}

		if canary {
			if sawCanary {
				return app, except.NewError("app %s has more than one canary deployment", except.ErrInvalid, meta.Name)
			}
			sawCanary = true
			app.Canary.Deployment = info
			app.HasCanary = true
		} else {
			if sawPrimary {
				return app, except.NewError("app %s has more than one primary deployment", except.ErrInvalid, meta.Name)
			}
			sawPrimary = true
			app.Primary.Deployment = info
		}
	}
	if !sawPrimary {
		return app, except.NewError("app has no primary deployment", except.ErrInvalid)
	}

	for _, manifest := range trackedKind(tracked, model.KindService) {
		labels := kubeutil.ManifestLabels(manifest)
		canary := labels[kubeutil.LabelDeploymentType] == kubeutil.DeploymentTypeCanary
		svc := serviceInfo(manifest)
		if canary {
			app.Canary.Service = svc
			app.Canary.UseService = true
		} else {
			app.Primary.Service = svc
			app.Primary.UseService = true
		}
	}

	// Canary traffic defaults to 0 when no VirtualService exists or its
	// routes are not the ones this server generates.
	app.Canary.TrafficPercent = 0
	for _, manifest := range trackedKind(tracked, model.KindVirtualService) {
		app.Canary.TrafficPercent = canaryTrafficPercent(manifest)
		break
	}

	return app, nil
}

// agreeingMetadata validates every Deployment and Service manifest against
// its expected kind and apiVersion and requires all of them to derive the
// same app identity.
func (m *manifestFactory) agreeingMetadata(tracked map[string]*model.WatchedResource) (model.AppMetadata, error) {
	expected := model.DefaultWatchedResources()

	var meta model.AppMetadata
	seen := false
	for _, kind := range []string{model.KindDeployment, model.KindService} {
		for _, manifest := range trackedKind(tracked, kind) {
			if got, _ := manifest["kind"].(string); got != kind {
				return meta, except.NewError("invalid %s manifest: kind is %q", except.ErrInvalid, kind, got)
			}
			if got, _ := manifest["apiVersion"].(string); got != expected[kind].APIVersion {
				return meta, except.NewError("invalid %s manifest: apiVersion is %q", except.ErrInvalid, kind, got)
			}

			derived, ok := kubeutil.GetMetaInfo(m.Config.Apps.ManagedBy, m.Config.Apps.EnvLabel, manifest)
			if !ok {
				return meta, except.NewError("%s is not managed by this server", except.ErrInvalid, kind)
			}
			if seen && derived != meta {
				return meta, except.NewError("manifests disagree on the app: %v vs %v", except.ErrInvalid, derived, meta)
			}
			meta = derived
			seen = true
		}
	}
	return meta, nil
}

func trackedKind(tracked map[string]*model.WatchedResource, kind string) map[string]model.Manifest {
	if tracked == nil {
		return nil
	}
	res, ok := tracked[kind]
	if !ok {
		return nil
	}
	return res.Manifests
}

// deploymentInfo extracts the user configurable values from the first
// container of a Deployment manifest.
func deploymentInfo(manifest model.Manifest) (model.DeploymentInfo, error) {
	info := model.DeploymentInfo{}

	container := firstContainer(manifest)
	if container == nil {
		return info, except.NewError("deployment has no containers", except.ErrInvalid)
	}

	info.Name, _ = container["name"].(string)
	info.Image, _ = container["image"].(string)
	info.Command = joinFields(container["command"])
	info.Args = joinFields(container["args"])
	info.EnvVars = userEnvVars(container["env"])

	var resources corev1.ResourceRequirements
	if decodeJSONValue(container["resources"], &resources) == nil {
		if len(resources.Limits) > 0 || len(resources.Requests) > 0 {
			info.Resources = resources
			info.UseResources = true
		}
	}
	if probe := decodeProbe(container["livenessProbe"]); probe != nil {
		info.LivenessProbe = probe
		info.UseLivenessProbe = true
	}
	if probe := decodeProbe(container["readinessProbe"]); probe != nil {
		info.ReadinessProbe = probe
		info.UseReadinessProbe = true
	}

	annotations := manifestAnnotations(manifest)
	info.IsFlux = annotations["fluxcd.io/automated"] == "true"

	return info, nil
}

func firstContainer(manifest model.Manifest) map[string]interface{} {
	spec, _ := manifest["spec"].(map[string]interface{})
	if spec == nil {
		return nil
	}
	template, _ := spec["template"].(map[string]interface{})
	if template == nil {
		return nil
	}
	podSpec, _ := template["spec"].(map[string]interface{})
	if podSpec == nil {
		return nil
	}
	containers, _ := podSpec["containers"].([]interface{})
	if len(containers) == 0 {
		return nil
	}
	container, _ := containers[0].(map[string]interface{})
	return container
}

func manifestAnnotations(manifest model.Manifest) map[string]string {
	metadata, _ := manifest["metadata"].(map[string]interface{})
	if metadata == nil {
		return nil
	}
	raw, _ := metadata["annotations"].(map[string]interface{})
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func joinFields(v interface{}) string {
	items, _ := v.([]interface{})
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// userEnvVars returns the env vars the user owns: the reserved pod metadata
// vars are stripped and only plain name/value pairs survive the reversal.
func userEnvVars(v interface{}) []corev1.EnvVar {
	var all []corev1.EnvVar
	if decodeJSONValue(v, &all) != nil {
		return nil
	}

	reserved := map[string]bool{}
	for _, name := range ReservedFieldRefEnvs {
		reserved[name] = true
	}

	var out []corev1.EnvVar
	for _, env := range all {
		if reserved[env.Name] || env.ValueFrom != nil {
			continue
		}
		out = append(out, corev1.EnvVar{Name: env.Name, Value: env.Value})
	}
	return out
}

func decodeProbe(v interface{}) *corev1.Probe {
	var probe corev1.Probe
	if decodeJSONValue(v, &probe) != nil {
		return nil
	}
	if probe.ProbeHandler == (corev1.ProbeHandler{}) {
		return nil
	}
	return &probe
}

func decodeJSONValue(v interface{}, out interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func serviceInfo(manifest model.Manifest) model.AppService {
	svc := model.AppService{}
	spec, _ := manifest["spec"].(map[string]interface{})
	if spec == nil {
		return svc
	}
	ports, _ := spec["ports"].([]interface{})
	if len(ports) == 0 {
		return svc
	}
	var parsed []corev1.ServicePort
	if decodeJSONValue(ports, &parsed) != nil || len(parsed) == 0 {
		return svc
	}
	svc.Port = parsed[0].Port
	svc.TargetPort = int32(parsed[0].TargetPort.IntValue())
	return svc
}

// canaryTrafficPercent derives the canary weight from the VirtualService's
// weighted routes. 100 minus the primary subset's weight keeps the number
// meaningful even when the canary route is absent.
func canaryTrafficPercent(manifest model.Manifest) int {
	var vs model.VirtualService
	if decodeJSONValue(manifest, &vs) != nil {
		return 0
	}
	for _, http := range vs.Spec.Http {
		for _, route := range http.Route {
			if route.Destination.Subset == kubeutil.DeploymentTypePrimary {
				return 100 - route.Weight
			}
		}
	}
	return 0
}
