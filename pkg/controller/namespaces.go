package controller

import (
	"net/http"
	"sort"

	"github.com/dfh-cloud/dfh/pkg/database"
	"github.com/dfh-cloud/dfh/pkg/exchange"
	"github.com/dfh-cloud/dfh/pkg/model"
	"github.com/labstack/echo/v4"
)

const NamespacesControllerKey = "NamespacesController"

type NamespacesController interface {
	Controller
	List(ctx echo.Context) error
}

type namespacesController struct {
	Database database.Database `inject:"Database"`
}

func (n *namespacesController) List(ctx echo.Context) error {
	names := []string{}
	for _, manifest := range n.Database.Manifests(model.KindNamespace) {
		metadata, _ := manifest["metadata"].(map[string]interface{})
		if metadata == nil {
			continue
		}
		if name, _ := metadata["name"].(string); name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return ctx.JSON(http.StatusOK, exchange.ListNamespacesResponse{Data: names})
}

func (n *namespacesController) Routes() []Route {
	return []Route{
		{
			Path:    "",
			Method:  http.MethodGet,
			Handler: n.List,
		},
	}
}

func (n *namespacesController) Group() string {
	return "namespaces"
}
