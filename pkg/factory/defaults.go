package factory

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/pointer"
	"sigs.k8s.io/yaml"
)

// ReservedFieldRefEnvs are injected into every generated Deployment and are
// sourced from pod metadata. Users cannot control them; the reverse mapping
// strips them so the cluster's copy does not masquerade as user input.
var ReservedFieldRefEnvs = []string{
	"POD_ID",
	"POD_NAME",
	"POD_NAMESPACE",
	"POD_VERSION",
	"POD_IP",
}

// deploymentTemplate is the starting point for apps that do not exist yet.
const deploymentTemplateYaml = `
apiVersion: apps/v1
kind: Deployment
metadata: {}
spec:
  replicas: 1
  template:
    metadata: {}
    spec:
      containers:
        - name: app
`

func deploymentTemplate() map[string]interface{} {
	out := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(deploymentTemplateYaml), &out); err != nil {
		panic(err)
	}
	return out
}

func podFieldRefEnvs() []corev1.EnvVar {
	fieldPaths := [][2]string{
		{"POD_ID", "metadata.uid"},
		{"POD_NAME", "metadata.name"},
		{"POD_NAMESPACE", "metadata.namespace"},
		{"POD_VERSION", "metadata.labels['version']"},
		{"POD_IP", "status.podIP"},
	}

	envVars := make([]corev1.EnvVar, 0, len(fieldPaths))
	for _, kv := range fieldPaths {
		envVars = append(envVars, corev1.EnvVar{
			Name: kv[0],
			ValueFrom: &corev1.EnvVarSource{
				FieldRef: &corev1.ObjectFieldSelector{
					APIVersion: "v1",
					FieldPath:  kv[1],
				},
			},
		})
	}
	return envVars
}

func podSecurityContext() *corev1.SecurityContext {
	return &corev1.SecurityContext{
		AllowPrivilegeEscalation: pointer.Bool(false),
		Capabilities: &corev1.Capabilities{
			Drop: []corev1.Capability{"ALL"},
		},
		Privileged:             pointer.Bool(false),
		ReadOnlyRootFilesystem: pointer.Bool(true),
		RunAsGroup:             pointer.Int64(3000),
		RunAsNonRoot:           pointer.Bool(true),
		RunAsUser:              pointer.Int64(1000),
	}
}

func topologySpread(labelSelectors map[string]string) []corev1.TopologySpreadConstraint {
	topologyKeys := []string{"topology.kubernetes.io/zone", "kubernetes.io/hostname"}

	out := make([]corev1.TopologySpreadConstraint, 0, len(topologyKeys))
	for _, key := range topologyKeys {
		out = append(out, corev1.TopologySpreadConstraint{
			MaxSkew:           1,
			TopologyKey:       key,
			WhenUnsatisfiable: corev1.ScheduleAnyway,
			LabelSelector:     &metav1.LabelSelector{MatchLabels: labelSelectors},
		})
	}
	return out
}
