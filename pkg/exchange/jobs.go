package exchange

import "github.com/dfh-cloud/dfh/pkg/model"

type GetJobRequest struct {
	Id string `param:"id"`
}

type GetJobResponse struct {
	Data model.Job `json:"data"`
}
