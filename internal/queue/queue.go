package queue

import (
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueueDispatchRun schedules one run for execution after delay. Runs are
// not retried by the queue; partial progress inside a run must not be
// replayed from the top.
func EnqueueDispatchRun(asynqClient *asynq.Client, payload DispatchPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeDispatchRun, taskPayload)

	_, err = asynqClient.Enqueue(task, asynq.ProcessIn(delay), asynq.MaxRetry(0))
	if err != nil {
		return err
	}

	log.Printf("Dispatch run queued: %s (%d posts)", payload.RunID, len(payload.Request.PostIDs))
	return nil
}
