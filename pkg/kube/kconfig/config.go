package kconfig

import (
	"os"
	"path"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

type ConfigSpec struct {
	ConfigPath string
	Context    string
	Namespace  string
}

type Config interface {
	Rest() *rest.Config
	InCluster() bool
	GetNamespace() string
}

type config struct {
	RestConfig  *rest.Config
	IsInCluster bool
	Namespace   string
}

func (c *config) Rest() *rest.Config {
	return c.RestConfig
}

func (c *config) InCluster() bool {
	return c.IsInCluster
}

func (c *config) GetNamespace() string {
	if c.Namespace == "" {
		f, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace")
		if err != nil {
			return ""
		}
		c.Namespace = string(f)
	}
	return c.Namespace
}

// NewConfigClient resolves cluster credentials. In-cluster service account
// credentials win; otherwise the kubeconfig at spec.ConfigPath (or the
// default location) with spec.Context selected.
func NewConfigClient(spec ConfigSpec) (Config, error) {
	confClient := new(config)

	conf, err := rest.InClusterConfig()
	if err != nil {
		if err != rest.ErrNotInCluster {
			return nil, err
		}

		clientConf, kubeConf, err := loadKubeConfig(spec.ConfigPath, spec.Context)
		if err != nil {
			return nil, err
		}
		confClient.RestConfig = clientConf
		if spec.Namespace == "" {
			spec.Namespace, _, err = kubeConf.Namespace()
			if err != nil {
				return nil, err
			}
		}
		confClient.Namespace = spec.Namespace
	} else {
		confClient.RestConfig = conf
		confClient.IsInCluster = true
	}

	return confClient, nil
}

func loadKubeConfig(configPath, context string) (*rest.Config, clientcmd.ClientConfig, error) {
	if configPath == "" {
		hd, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, err
		}
		configPath = path.Join(hd, ".kube", "config")
	}

	clientConf := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: configPath},
		&clientcmd.ConfigOverrides{CurrentContext: context},
	)

	conf, err := clientConf.ClientConfig()
	if err != nil {
		return nil, nil, err
	}

	return conf, clientConf, nil
}
