package model

import (
	corev1 "k8s.io/api/core/v1"
)

// Metadata is the subset of the K8s object metadata the generator owns.
// Volatile server-side fields (uid, resourceVersion, timestamps) are
// deliberately absent so generated manifests never carry them.
type Metadata struct {
	Name        string            `json:"name,omitempty"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

type ServiceSpec struct {
	Ports    []corev1.ServicePort `json:"ports,omitempty"`
	Selector map[string]string    `json:"selector,omitempty"`
}

type Service struct {
	APIVersion string      `json:"apiVersion"`
	Kind       string      `json:"kind"`
	Metadata   Metadata    `json:"metadata"`
	Spec       ServiceSpec `json:"spec"`
}

type RouteDestination struct {
	Host   string `json:"host"`
	Subset string `json:"subset"`
}

type WeightedRoute struct {
	Destination RouteDestination `json:"destination"`
	Weight      int              `json:"weight"`
}

type HttpRoute struct {
	Route []WeightedRoute `json:"route"`
}

type VirtualServiceSpec struct {
	Hosts []string    `json:"hosts"`
	Http  []HttpRoute `json:"http"`
}

type VirtualService struct {
	APIVersion string             `json:"apiVersion"`
	Kind       string             `json:"kind"`
	Metadata   Metadata           `json:"metadata"`
	Spec       VirtualServiceSpec `json:"spec"`
}

type DestinationSubset struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
}

type DestinationRuleSpec struct {
	Host    string              `json:"host"`
	Subsets []DestinationSubset `json:"subsets"`
}

type DestinationRule struct {
	APIVersion string              `json:"apiVersion"`
	Kind       string              `json:"kind"`
	Metadata   Metadata            `json:"metadata"`
	Spec       DestinationRuleSpec `json:"spec"`
}
