package factory

import (
	"encoding/json"
	"strings"

	"github.com/dfh-cloud/dfh/pkg/config"
	"github.com/dfh-cloud/dfh/pkg/except"
	"github.com/dfh-cloud/dfh/pkg/kubeutil"
	"github.com/dfh-cloud/dfh/pkg/model"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/pointer"
)

const ManifestFactoryKey = "ManifestFactory"

// ManifestFactory turns the declarative AppInfo contract into concrete K8s
// manifests. All methods are pure transformations: the tracked resources of
// the app are read-only context used as upsert bases, never mutated.
type ManifestFactory interface {
	Deployment(app model.AppInfo, canary bool, base model.Manifest) model.Manifest
	Service(app model.AppInfo, canary bool, base model.Manifest) model.Manifest
	Istio(app model.AppInfo) (model.Manifest, model.Manifest, error)

	// FromAppInfo produces the full manifest bundle for an app, upserting
	// over the previously tracked manifests where they exist.
	FromAppInfo(app model.AppInfo, tracked map[string]*model.WatchedResource) (*model.GeneratedManifests, error)

	// AppInfoFromManifests reverse engineers the AppInfo from a group of
	// tracked manifests, eg to import deployments not created through this
	// server.
	AppInfoFromManifests(tracked map[string]*model.WatchedResource) (model.AppInfo, error)
}

type manifestFactory struct {
	Config *config.Config `inject:"Config"`
}

func NewManifestFactory(conf *config.Config) ManifestFactory {
	return &manifestFactory{Config: conf}
}

// resourceLabels is the label set this server owns on every manifest it
// generates.
func (m *manifestFactory) resourceLabels(meta model.AppMetadata, canary bool) map[string]string {
	deploymentType := kubeutil.DeploymentTypePrimary
	if canary {
		deploymentType = kubeutil.DeploymentTypeCanary
	}
	return map[string]string{
		kubeutil.LabelApp:            meta.Name,
		m.Config.Apps.EnvLabel:       meta.Env,
		kubeutil.LabelName:           meta.Name,
		kubeutil.LabelManagedBy:      m.Config.Apps.ManagedBy,
		kubeutil.LabelDeploymentType: deploymentType,
	}
}

func (m *manifestFactory) Deployment(app model.AppInfo, canary bool, base model.Manifest) model.Manifest {
	var manifest model.Manifest
	if base != nil {
		// Deep copy so fields we do not own survive untouched.
		manifest = model.DeepCopyManifest(base)
	} else {
		manifest = deploymentTemplate()
	}

	meta := app.Metadata
	labels := m.resourceLabels(meta, canary)

	manifest["apiVersion"] = "apps/v1"
	manifest["kind"] = model.KindDeployment

	deploy := app.Primary.Deployment
	if canary {
		deploy = app.Canary.Deployment
	}

	metadata := ensureMap(manifest, "metadata")
	metadata["name"] = model.ResourceName(meta, canary)
	metadata["namespace"] = meta.Namespace
	metadata["labels"] = toJSONValue(labels)

	annotations := ensureMap(metadata, "annotations")
	if deploy.IsFlux {
		annotations["fluxcd.io/automated"] = "true"
	} else {
		delete(annotations, "fluxcd.io/automated")
		if len(annotations) == 0 {
			delete(metadata, "annotations")
		}
	}

	spec := ensureMap(manifest, "spec")

	// The selector is immutable on the server; only set it on fresh
	// manifests.
	if _, ok := spec["selector"]; !ok {
		spec["selector"] = toJSONValue(map[string]interface{}{"matchLabels": labels})
	}

	template := ensureMap(spec, "template")
	templateMeta := ensureMap(template, "metadata")
	templateMeta["labels"] = toJSONValue(labels)

	templateSpec := ensureMap(template, "spec")
	containers, _ := templateSpec["containers"].([]interface{})
	if len(containers) == 0 {
		containers = []interface{}{map[string]interface{}{}}
	}
	container, _ := containers[0].(map[string]interface{})
	if container == nil {
		container = map[string]interface{}{}
		containers[0] = container
	}

	container["name"] = deploy.Name
	container["image"] = deploy.Image
	container["command"] = toJSONValue(strings.Fields(deploy.Command))
	container["args"] = toJSONValue(strings.Fields(deploy.Args))
	container["env"] = toJSONValue(append(append([]corev1.EnvVar{}, deploy.EnvVars...), podFieldRefEnvs()...))
	container["securityContext"] = toJSONValue(podSecurityContext())

	// The cluster always reports an empty map for unset resources and
	// probes. Emit explicit empty objects to avoid pointless diffs.
	if deploy.UseResources {
		container["resources"] = toJSONValue(deploy.Resources)
	} else {
		container["resources"] = map[string]interface{}{}
	}
	if deploy.UseLivenessProbe && deploy.LivenessProbe != nil {
		container["livenessProbe"] = toJSONValue(deploy.LivenessProbe)
	} else {
		container["livenessProbe"] = map[string]interface{}{}
	}
	if deploy.UseReadinessProbe && deploy.ReadinessProbe != nil {
		container["readinessProbe"] = toJSONValue(deploy.ReadinessProbe)
	} else {
		container["readinessProbe"] = map[string]interface{}{}
	}

	templateSpec["containers"] = containers
	templateSpec["topologySpreadConstraints"] = toJSONValue(topologySpread(map[string]string{
		kubeutil.LabelApp: meta.Name,
	}))

	return manifest
}

func (m *manifestFactory) Service(app model.AppInfo, canary bool, base model.Manifest) model.Manifest {
	meta := app.Metadata
	info := app.Primary.Service
	if canary {
		info = app.Canary.Service
	}

	name := model.ResourceName(meta, canary)
	svc := model.Service{
		APIVersion: "v1",
		Kind:       model.KindService,
		Metadata: model.Metadata{
			Name:      name,
			Namespace: meta.Namespace,
			Labels:    m.resourceLabels(meta, canary),
		},
		Spec: model.ServiceSpec{
			Ports: []corev1.ServicePort{
				{
					Name:        "http2",
					AppProtocol: pointer.String("http2"),
					Protocol:    corev1.ProtocolTCP,
					Port:        info.Port,
					TargetPort:  intstr.FromInt32(info.TargetPort),
				},
			},
			// The selector must target the variant's own pods so a canary
			// Service never selects primary ones.
			Selector: map[string]string{kubeutil.LabelApp: name},
		},
	}

	out := toManifest(svc)
	if base != nil {
		mergeMetadataStrings(out, base, "labels")
		mergeMetadataStrings(out, base, "annotations")
	}
	return out
}

// Istio produces the VirtualService and DestinationRule that split traffic
// between the primary and canary variants.
func (m *manifestFactory) Istio(app model.AppInfo) (model.Manifest, model.Manifest, error) {
	meta := app.Metadata
	name := meta.Name

	if !app.HasCanary {
		return nil, nil, except.NewError("app %s/%s has no canary", except.ErrInvalid, name, meta.Env)
	}
	if app.Canary.TrafficPercent < 0 || app.Canary.TrafficPercent > 100 {
		return nil, nil, except.NewError("invalid canary traffic percentage %d", except.ErrInvalid, app.Canary.TrafficPercent)
	}

	weightCanary := app.Canary.TrafficPercent
	weightPrimary := 100 - weightCanary

	vs := model.VirtualService{
		APIVersion: model.IstioApiVersion,
		Kind:       model.KindVirtualService,
		Metadata: model.Metadata{
			Name:      name,
			Namespace: meta.Namespace,
			Labels:    m.resourceLabels(meta, false),
		},
		Spec: model.VirtualServiceSpec{
			Hosts: []string{name},
			Http: []model.HttpRoute{
				{
					Route: []model.WeightedRoute{
						{
							Destination: model.RouteDestination{Host: name, Subset: kubeutil.DeploymentTypePrimary},
							Weight:      weightPrimary,
						},
						{
							Destination: model.RouteDestination{Host: name, Subset: kubeutil.DeploymentTypeCanary},
							Weight:      weightCanary,
						},
					},
				},
			},
		},
	}

	dr := model.DestinationRule{
		APIVersion: model.IstioApiVersion,
		Kind:       model.KindDestinationRule,
		Metadata: model.Metadata{
			Name:      name,
			Namespace: meta.Namespace,
			Labels:    m.resourceLabels(meta, false),
		},
		Spec: model.DestinationRuleSpec{
			Host: name,
			Subsets: []model.DestinationSubset{
				{
					Name:   kubeutil.DeploymentTypePrimary,
					Labels: map[string]string{kubeutil.LabelDeploymentType: kubeutil.DeploymentTypePrimary},
				},
				{
					Name:   kubeutil.DeploymentTypeCanary,
					Labels: map[string]string{kubeutil.LabelDeploymentType: kubeutil.DeploymentTypeCanary},
				},
			},
		},
	}

	return toManifest(vs), toManifest(dr), nil
}

func (m *manifestFactory) FromAppInfo(app model.AppInfo, tracked map[string]*model.WatchedResource) (*model.GeneratedManifests, error) {
	meta := app.Metadata
	primaryKey := model.WatchKey(meta, false)
	canaryKey := model.WatchKey(meta, true)

	out := model.NewGeneratedManifests()

	out.Resources[model.KindDeployment].Manifests[primaryKey] =
		m.Deployment(app, false, trackedManifest(tracked, model.KindDeployment, primaryKey))

	if app.HasCanary {
		out.Resources[model.KindDeployment].Manifests[canaryKey] =
			m.Deployment(app, true, trackedManifest(tracked, model.KindDeployment, canaryKey))

		vs, dr, err := m.Istio(app)
		if err != nil {
			return nil, err
		}
		out.Resources[model.KindVirtualService].Manifests[primaryKey] = vs
		out.Resources[model.KindDestinationRule].Manifests[primaryKey] = dr
	}

	if app.Primary.UseService {
		out.Resources[model.KindService].Manifests[primaryKey] =
			m.Service(app, false, trackedManifest(tracked, model.KindService, primaryKey))
	}
	if app.HasCanary && app.Canary.UseService {
		out.Resources[model.KindService].Manifests[canaryKey] =
			m.Service(app, true, trackedManifest(tracked, model.KindService, canaryKey))
	}

	return out, nil
}

func trackedManifest(tracked map[string]*model.WatchedResource, kind, key string) model.Manifest {
	if tracked == nil {
		return nil
	}
	res, ok := tracked[kind]
	if !ok {
		return nil
	}
	return res.Manifests[key]
}

func ensureMap(parent map[string]interface{}, key string) map[string]interface{} {
	if v, ok := parent[key].(map[string]interface{}); ok {
		return v
	}
	v := map[string]interface{}{}
	parent[key] = v
	return v
}

// toJSONValue converts any typed value into the plain decoded-JSON form the
// raw manifests use.
func toJSONValue(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func toManifest(v interface{}) model.Manifest {
	out, _ := toJSONValue(v).(map[string]interface{})
	if out == nil {
		out = model.Manifest{}
	}
	return out
}

// mergeMetadataStrings merges one metadata string-map (labels or
// annotations) of `base` into `out`. Freshly generated keys win; keys that
// only exist on the cluster's copy survive.
func mergeMetadataStrings(out, base model.Manifest, field string) {
	baseMeta, _ := base["metadata"].(map[string]interface{})
	if baseMeta == nil {
		return
	}
	old, _ := baseMeta[field].(map[string]interface{})
	if len(old) == 0 {
		return
	}

	outMeta := ensureMap(out, "metadata")
	merged := map[string]interface{}{}
	for k, v := range old {
		merged[k] = v
	}
	if current, ok := outMeta[field].(map[string]interface{}); ok {
		for k, v := range current {
			merged[k] = v
		}
	}
	outMeta[field] = merged
}
