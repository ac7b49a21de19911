package config

import (
	"bytes"
	"os"
	"strings"

	"github.com/eddieowens/axon"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
	"k8s.io/client-go/tools/clientcmd"
)

const ConfigKey = "Config"

type Config struct {
	Server Server `mapstructure:"server"`
	Kube   Kube   `mapstructure:"kube"`
	Apps   Apps   `mapstructure:"apps"`
	Log    Log    `mapstructure:"log"`
}

type Server struct {
	Port uint16 `mapstructure:"port"`
}

type Kube struct {
	Config  string `mapstructure:"config"`
	Context string `mapstructure:"context"`
}

type Apps struct {
	// Only manifests whose `app.kubernetes.io/managed-by` label carries this
	// value belong to an app.
	ManagedBy string `mapstructure:"managedby"`

	// The label key that groups app deployments into environments.
	EnvLabel string `mapstructure:"envlabel"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	TimeFormat string `mapstructure:"timeformat"`
}

func defaultConfig() *Config {
	return &Config{
		Server: Server{
			Port: 5001,
		},
		Kube: Kube{
			Config: clientcmd.RecommendedHomeFile,
		},
		Apps: Apps{
			ManagedBy: "dfh",
			EnvLabel:  "env",
		},
		Log: Log{
			Level: "info",
		},
	}
}

func configFactory(_ axon.Injector, _ axon.Args) axon.Instance {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("dfh")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(false)

	b, _ := yaml.Marshal(defaultConfig())
	defaults := bytes.NewReader(b)
	if err := v.MergeConfig(defaults); err != nil {
		panic(err)
	}

	configPath := os.Getenv("DFH_CONFIG_PATH")
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.WithField("path", configPath).WithError(err).Debug("Failed to load config file")
			} else {
				panic(err)
			}
		}
	}

	v.AutomaticEnv()

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		log.Fatal(err)
	}

	return axon.Any(conf)
}
