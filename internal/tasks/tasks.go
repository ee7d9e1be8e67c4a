package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"billflow/desk/internal/backend"
	"billflow/desk/internal/models"
	"billflow/desk/internal/services"
)

// TaskType defines the type of a background task.
const (
	TypeInvoiceRender = "billing:invoice:render"
)

const (
	queueDefault  = "default"
	maxRetry      = 5
	renderTimeout = 2 * time.Minute
)

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// InvoiceRenderPayload carries everything the worker needs to act for the user.
// The token is the user's backend bearer token; it expires with the backend session.
type InvoiceRenderPayload struct {
	InvoiceID   int    `json:"invoice_id"`
	DisplayName string `json:"display_name,omitempty"`
	Token       string `json:"token"`
	UserID      int    `json:"user_id"`
	Username    string `json:"username,omitempty"`
}

// NewInvoiceRenderTask builds the task without enqueuing it.
func NewInvoiceRenderTask(session *backend.Session, invoiceID int, displayName string) (*asynq.Task, error) {
	if session == nil || session.Token == "" {
		return nil, fmt.Errorf("render task for invoice %d: %w", invoiceID, backend.ErrUnauthorized)
	}
	payload, err := json.Marshal(InvoiceRenderPayload{
		InvoiceID:   invoiceID,
		DisplayName: displayName,
		Token:       session.Token,
		UserID:      session.UserID,
		Username:    session.Username,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal render payload: %w", err)
	}
	return asynq.NewTask(TypeInvoiceRender, payload,
		asynq.Queue(queueDefault),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(renderTimeout),
	), nil
}

// Enqueuer is the part of asynq.Client used to schedule tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueInvoiceRender schedules publication of an invoice document.
func EnqueueInvoiceRender(ctx context.Context, client Enqueuer, session *backend.Session, invoiceID int, displayName string) (*asynq.TaskInfo, error) {
	task, err := NewInvoiceRenderTask(session, invoiceID, displayName)
	if err != nil {
		return nil, err
	}
	info, err := client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue render of invoice %d: %w", invoiceID, err)
	}
	log.Printf("Enqueued %s task %s for invoice %d", TypeInvoiceRender, info.ID, invoiceID)
	return info, nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	invoiceService services.IInvoiceService
}

func NewTaskProcessor(invoiceService services.IInvoiceService) *TaskProcessor {
	return &TaskProcessor{invoiceService: invoiceService}
}

// SetupServer configures an Asynq server and its handlers. The caller runs and shuts it down.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, concurrency int) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queueDefault: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				// Payload carries a bearer token, so only the type is logged.
				fmt.Printf("[Asynq Error] Task Type: %s, Error: %v\n", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInvoiceRender, processor.HandleInvoiceRenderTask)
	fmt.Println("Registered invoice render task handler.")
	return srv, mux
}

// --- Task Handlers ---

// HandleInvoiceRenderTask renders an invoice and publishes it to the configured sinks.
// Failures that a retry cannot fix skip the retry queue.
func (p *TaskProcessor) HandleInvoiceRenderTask(ctx context.Context, t *asynq.Task) error {
	var payload InvoiceRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal render task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.InvoiceID <= 0 || payload.Token == "" {
		return fmt.Errorf("render task payload missing invoice id or token: %w", asynq.SkipRetry)
	}

	log.Printf("Processing render task: Invoice=%d, User=%d", payload.InvoiceID, payload.UserID)

	session := &backend.Session{Token: payload.Token, UserID: payload.UserID, Username: payload.Username}
	rec, err := p.invoiceService.Publish(ctx, session, payload.InvoiceID, payload.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMalformedInvoice),
			errors.Is(err, backend.ErrInvoiceNotFound),
			errors.Is(err, backend.ErrUnauthorized):
			log.Printf("Render of invoice %d cannot succeed: %v", payload.InvoiceID, err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Printf("Render of invoice %d failed (will retry): %v", payload.InvoiceID, err)
		return err
	}

	log.Printf("Render task processed successfully: Invoice=%d, Reference=%s, Locations=%v",
		payload.InvoiceID, rec.Reference, rec.Locations)
	return nil
}
