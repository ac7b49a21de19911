package model

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued execution of a DeploymentPlan. Jobs live in memory only
// and die with the process.
type Job struct {
	Id      string         `json:"id"`
	Status  JobStatus      `json:"status"`
	Plan    DeploymentPlan `json:"plan"`
	Error   string         `json:"error,omitempty"`
	Created time.Time      `json:"created"`
	Done    time.Time      `json:"done,omitempty"`
}
