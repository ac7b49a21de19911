package service

import (
	"github.com/dfh-cloud/dfh/pkg/config"
	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/kube"
	"github.com/dfh-cloud/dfh/pkg/kube/kconfig"
	"github.com/eddieowens/axon"
)

type Package struct {
}

const KubeClientKey = "KubeClient"

const DatabaseKey = "Database"

func kubeClientFactory(inj axon.Injector, _ axon.Args) axon.Instance {
	conf := inj.GetStructPtr(config.ConfigKey).(*config.Config)
	spec := kube.ClientSpec{
		Config: kconfig.ConfigSpec{
			ConfigPath: conf.Kube.Config,
			Context:    conf.Kube.Context,
		},
	}

	k, err := kube.NewClient(spec)
	if err != nil {
		panic(err)
	}
	return axon.StructPtr(k)
}

func databaseFactory(inj axon.Injector, _ axon.Args) axon.Instance {
	conf := inj.GetStructPtr(config.ConfigKey).(*config.Config)
	db := database.NewDatabase(database.Spec{
		ManagedBy: conf.Apps.ManagedBy,
		EnvLabel:  conf.Apps.EnvLabel,
	})
	return axon.StructPtr(db)
}

func (p *Package) Bindings() []axon.Binding {
	return []axon.Binding{
		axon.Bind(KubeClientKey).To().Factory(kubeClientFactory).WithoutArgs(),
		axon.Bind(DatabaseKey).To().Factory(databaseFactory).WithoutArgs(),
		axon.Bind(DiffServiceKey).To().StructPtr(new(diffService)),
		axon.Bind(PlanServiceKey).To().StructPtr(new(planService)),
		axon.Bind(ApplyServiceKey).To().StructPtr(new(applyService)),
		axon.Bind(JobServiceKey).To().StructPtr(new(jobService)),
		axon.Bind(PodServiceKey).To().StructPtr(new(podService)),
		axon.Bind(TrackerServiceKey).To().StructPtr(new(trackerService)),
		axon.Bind(WatchRunnerKey).To().StructPtr(new(watchRunner)),
		axon.Bind(UAMServiceKey).To().StructPtr(new(uamService)),
	}
}
