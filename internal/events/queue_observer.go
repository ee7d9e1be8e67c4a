package events

import (
	"context"
	"log"
	"time"

	"billflow/desk/internal/uploadqueue"
)

const publishTimeout = 5 * time.Second

// QueueObserver turns upload queue notifications into events. Publish failures are
// logged and never reach the queue.
type QueueObserver struct {
	publisher Publisher
	owner     string
}

// NewQueueObserver tags every event with owner, normally the backend user id.
func NewQueueObserver(publisher Publisher, owner string) *QueueObserver {
	return &QueueObserver{publisher: publisher, owner: owner}
}

// ItemChanged publishes terminal transitions only; advisory progress steps are not interesting downstream.
func (o *QueueObserver) ItemChanged(item uploadqueue.Item) {
	if item.Status != uploadqueue.StatusDone && item.Status != uploadqueue.StatusError {
		return
	}
	data := map[string]interface{}{
		"owner":  o.owner,
		"item":   item.ID,
		"name":   item.Name,
		"size":   item.Size,
		"status": string(item.Status),
	}
	if item.Error != "" {
		data["error"] = item.Error
	}
	o.publish(NewEvent(UploadItemChanged, o.owner, data))
}

func (o *QueueObserver) QueueChanged([]uploadqueue.Item) {}

func (o *QueueObserver) BatchCompleted(result uploadqueue.BatchResult) {
	o.publish(NewEvent(UploadBatchCompleted, o.owner, map[string]interface{}{
		"owner":     o.owner,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}))
}

func (o *QueueObserver) publish(e *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(ctx, e); err != nil {
		log.Printf("QueueObserver: Failed to publish %s: %v", e.Type, err)
	}
}
