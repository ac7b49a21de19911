package exchange

import "github.com/dfh-cloud/dfh/pkg/model"

type ListPodsRequest struct {
	Name string `param:"name"`
	Env  string `param:"env"`
}

func (l *ListPodsRequest) Key() model.AppKey {
	return model.AppKey{Name: l.Name, Env: l.Env}
}

type ListPodsResponse struct {
	Data []model.PodInfo `json:"data"`
}
