package model

import (
	corev1 "k8s.io/api/core/v1"
)

// AppMetadata identifies one logical app. Not to be confused with the
// metadata of the K8s manifests the app owns.
type AppMetadata struct {
	Name      string `json:"name"`
	Env       string `json:"env"`
	Namespace string `json:"namespace"`
}

// AppKey addresses one app deployment in the database.
type AppKey struct {
	Name string
	Env  string
}

func (a AppMetadata) Key() AppKey {
	return AppKey{Name: a.Name, Env: a.Env}
}

// DeploymentInfo holds the user configurable values of one variant's
// Deployment. The Use* flags decide whether the respective block makes it
// into the generated manifest.
type DeploymentInfo struct {
	IsFlux            bool                        `json:"isFlux"`
	Resources         corev1.ResourceRequirements `json:"resources"`
	UseResources      bool                        `json:"useResources"`
	LivenessProbe     *corev1.Probe               `json:"livenessProbe,omitempty"`
	UseLivenessProbe  bool                        `json:"useLivenessProbe"`
	ReadinessProbe    *corev1.Probe               `json:"readinessProbe,omitempty"`
	UseReadinessProbe bool                        `json:"useReadinessProbe"`
	EnvVars           []corev1.EnvVar             `json:"envVars"`
	Image             string                      `json:"image"`
	Name              string                      `json:"name"`
	Command           string                      `json:"command"`
	Args              string                      `json:"args"`
}

type AppService struct {
	Port       int32 `json:"port"`
	TargetPort int32 `json:"targetPort"`
}

// AppPrimary captures the K8s resources of the primary variant.
type AppPrimary struct {
	Deployment DeploymentInfo `json:"deployment"`
	Service    AppService     `json:"service"`
	UseService bool           `json:"useService"`
}

// AppCanary captures the K8s resources of the canary variant. The primary's
// implied traffic weight is always 100 - TrafficPercent.
type AppCanary struct {
	Deployment     DeploymentInfo `json:"deployment"`
	Service        AppService     `json:"service"`
	UseService     bool           `json:"useService"`
	TrafficPercent int            `json:"trafficPercent"`
}

// AppInfo is the desired state contract submitted by callers.
type AppInfo struct {
	Metadata  AppMetadata `json:"metadata"`
	Primary   AppPrimary  `json:"primary"`
	Canary    AppCanary   `json:"canary"`
	HasCanary bool        `json:"hasCanary"`
}

type AppEnvOverview struct {
	Id   string   `json:"id"`
	Name string   `json:"name"`
	Envs []string `json:"envs"`
}
