package controller

import "github.com/eddieowens/axon"

const ControllersKey = "Controllers"

type Package struct {
}

func (p *Package) Bindings() []axon.Binding {
	return []axon.Binding{
		axon.Bind(AppsControllerKey).To().StructPtr(new(appsController)),
		axon.Bind(PodsControllerKey).To().StructPtr(new(podsController)),
		axon.Bind(NamespacesControllerKey).To().StructPtr(new(namespacesController)),
		axon.Bind(JobsControllerKey).To().StructPtr(new(jobsController)),
		axon.Bind(UAMControllerKey).To().StructPtr(new(uamController)),
		axon.Bind(HealthControllerKey).To().StructPtr(new(healthController)),
		axon.Bind(ControllersKey).To().Keys(
			AppsControllerKey,
			PodsControllerKey,
			NamespacesControllerKey,
			JobsControllerKey,
			UAMControllerKey,
			HealthControllerKey,
		),
	}
}
