package pkg

import (
	"github.com/dfh-cloud/dfh/pkg/config"
	"github.com/dfh-cloud/dfh/pkg/controller"
	"github.com/dfh-cloud/dfh/pkg/factory"
	"github.com/dfh-cloud/dfh/pkg/service"
	"github.com/eddieowens/axon"
)

func InjectorFactory() axon.Injector {
	return axon.NewInjector(axon.NewBinder(
		new(config.Package),
		new(factory.Package),
		new(service.Package),
		new(controller.Package),
		new(Package),
	))
}
