// Package queue runs dispatch requests through asynq so scheduling survives
// process restarts and can be delayed without holding an HTTP request open.
package queue

import (
	"github.com/postpilotapp/postpilot/internal/dispatch"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type Queue struct {
	dispatcher *dispatch.Dispatcher
}

func NewQueue(dispatcher *dispatch.Dispatcher) *Queue {
	return &Queue{dispatcher: dispatcher}
}

const TaskTypeDispatchRun = "dispatch:run"

type DispatchPayload struct {
	RunID   string                   `json:"run_id"`
	Request transfer.DispatchRequest `json:"request"`
}
