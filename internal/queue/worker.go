package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandleDispatchTask(ctx context.Context, task *asynq.Task) error {
	var payload DispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	result, err := q.dispatcher.Run(ctx, payload.Request)
	if err != nil {
		log.Printf("Dispatch run %s failed: %v", payload.RunID, err)
		return err
	}

	log.Printf("Dispatch run %s finished: %d/%d scheduled (aborted=%v)",
		payload.RunID, result.Succeeded, result.Total, result.Aborted)
	return nil
}
