package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"billflow/desk/internal/backend"
	"billflow/desk/internal/events"
	"billflow/desk/internal/uploadqueue"
)

// ErrTooManyFiles is returned when a single request carries more files than allowed.
var ErrTooManyFiles = errors.New("too many files in one upload")

// UploadReport is the outcome of one upload batch.
type UploadReport struct {
	Result uploadqueue.BatchResult `json:"result"`
	Items  []uploadqueue.Item      `json:"items"`
}

// IUploadService pushes files to the backend through an upload queue.
type IUploadService interface {
	UploadFiles(ctx context.Context, session *backend.Session, files []uploadqueue.File) (*UploadReport, error)
	UploadPaths(ctx context.Context, session *backend.Session, paths []string) (*UploadReport, error)
}

// uploadService implements IUploadService.
type uploadService struct {
	client     backend.IClient
	publisher  events.Publisher
	purgeDelay time.Duration
	maxFiles   int
}

// NewUploadService creates an upload service. publisher may be nil.
func NewUploadService(client backend.IClient, publisher events.Publisher, purgeDelay time.Duration, maxFiles int) IUploadService {
	return &uploadService{
		client:     client,
		publisher:  publisher,
		purgeDelay: purgeDelay,
		maxFiles:   maxFiles,
	}
}

// UploadPaths uploads local files. Unreadable paths fail the whole call before anything is sent.
func (s *uploadService) UploadPaths(ctx context.Context, session *backend.Session, paths []string) (*UploadReport, error) {
	files := make([]uploadqueue.File, 0, len(paths))
	for _, p := range paths {
		f, err := uploadqueue.LocalFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return s.UploadFiles(ctx, session, files)
}

// UploadFiles runs one queue batch over files. Files outside the allow-list or empty
// are dropped without being reported. Items carry their final state even when the
// queue has already purged them.
func (s *uploadService) UploadFiles(ctx context.Context, session *backend.Session, files []uploadqueue.File) (*UploadReport, error) {
	if session == nil || session.Token == "" {
		return nil, fmt.Errorf("upload: %w", backend.ErrUnauthorized)
	}
	if s.maxFiles > 0 && len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: %d files, limit is %d", ErrTooManyFiles, len(files), s.maxFiles)
	}

	var mu sync.Mutex
	final := map[int64]uploadqueue.Item{}
	recorder := uploadqueue.Hooks{
		OnItem: func(item uploadqueue.Item) {
			mu.Lock()
			final[item.ID] = item
			mu.Unlock()
			switch item.Status {
			case uploadqueue.StatusDone:
				log.Printf("Upload done: %s (%s)", item.Name, uploadqueue.FormatBytes(item.Size))
			case uploadqueue.StatusError:
				log.Printf("Upload failed: %s: %s", item.Name, item.Error)
			}
		},
	}

	observers := []uploadqueue.Observer{recorder}
	if s.publisher != nil {
		observers = append(observers, events.NewQueueObserver(s.publisher, strconv.Itoa(session.UserID)))
	}
	q := uploadqueue.New(s.client.WithToken(session.Token), s.purgeDelay, observers...)
	defer q.Close()

	added := q.Enqueue(files...)
	result, _ := q.RunAll(ctx)
	log.Printf("Upload batch for user %d: %d completed, %d failed, %d accepted of %d",
		session.UserID, result.Succeeded, result.Failed, len(added), len(files))

	mu.Lock()
	defer mu.Unlock()
	items := make([]uploadqueue.Item, 0, len(added))
	for _, a := range added {
		if it, ok := final[a.ID]; ok {
			items = append(items, it)
		} else {
			items = append(items, a)
		}
	}
	return &UploadReport{Result: result, Items: items}, nil
}
