// Package uploadqueue drives a batch of file transfers one at a time through
// waiting -> uploading -> done|error and reports every transition to observers.
package uploadqueue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Status is the lifecycle state of a queued transfer.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// Advisory progress values. They mark stages, not bytes transferred.
const (
	ProgressStarted  = 20
	ProgressInFlight = 60
	ProgressComplete = 100
)

const (
	// DefaultPurgeDelay is how long done items stay visible after a successful batch.
	DefaultPurgeDelay = 1500 * time.Millisecond
	// DefaultErrorMessage is recorded when a failure carries no message of its own.
	DefaultErrorMessage = "Upload failed"
)

// Uploader performs the single network call for one file.
type Uploader interface {
	Upload(ctx context.Context, file File) error
}

// MessageError is implemented by upload failures that carry a message meant for the user.
type MessageError interface {
	error
	UserMessage() string
}

// Item is a snapshot of one queued transfer.
type Item struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`

	file File
}

// File returns the payload the item was created from.
func (i Item) File() File {
	return i.file
}

// BatchResult summarises one RunAll pass.
type BatchResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Stats are counts over the visible queue.
type Stats struct {
	Total     int `json:"total"`
	Waiting   int `json:"waiting"`
	Uploading int `json:"uploading"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
}

// Queue owns the upload list. All mutation goes through its methods.
type Queue struct {
	mu         sync.Mutex
	items      []*Item
	nextID     int64
	uploading  bool
	purgeTimer *time.Timer

	uploader   Uploader
	purgeDelay time.Duration
	observers  []Observer
}

// New creates a queue. A purgeDelay of zero purges done items as soon as the batch ends.
func New(uploader Uploader, purgeDelay time.Duration, observers ...Observer) *Queue {
	return &Queue{
		uploader:   uploader,
		purgeDelay: purgeDelay,
		observers:  observers,
	}
}

// Subscribe registers an additional observer.
func (q *Queue) Subscribe(o Observer) {
	if o == nil {
		return
	}
	q.mu.Lock()
	q.observers = append(q.observers, o)
	q.mu.Unlock()
}

// Enqueue appends every acceptable file as a waiting item and returns the new items.
// Files with a disallowed extension or no content are dropped without error.
func (q *Queue) Enqueue(files ...File) []Item {
	q.mu.Lock()
	var added []Item
	for _, f := range files {
		if f == nil || !Accepts(f.Name(), f.Size()) {
			continue
		}
		q.nextID++
		item := &Item{
			ID:       q.nextID,
			Name:     f.Name(),
			Size:     f.Size(),
			Status:   StatusWaiting,
			Progress: 0,
			file:     f,
		}
		q.items = append(q.items, item)
		added = append(added, *item)
	}
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	if len(added) > 0 {
		q.notifyQueue(snapshot)
	}
	return added
}

// Remove drops a waiting item. Items in any other state are left alone.
func (q *Queue) Remove(id int64) bool {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 || q.items[idx].Status != StatusWaiting {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	q.notifyQueue(snapshot)
	return true
}

// Clear empties the visible list whatever the item states. An upload already in
// flight still completes, but its outcome is discarded.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()

	q.notifyQueue(nil)
}

// Items returns a snapshot of the queue in enqueue order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// IsUploading reports whether a batch is in flight.
func (q *Queue) IsUploading() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.uploading
}

// Stats counts items by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{Total: len(q.items)}
	for _, it := range q.items {
		switch it.Status {
		case StatusWaiting:
			s.Waiting++
		case StatusUploading:
			s.Uploading++
		case StatusDone:
			s.Done++
		case StatusError:
			s.Failed++
		}
	}
	return s
}

// RunAll uploads every item that is waiting when the call starts, strictly one at a time
// and in enqueue order. A failed item never stops the batch. The second return value is
// false when nothing ran: either another batch is in flight or nothing was waiting.
//
// Cancelling ctx stops scheduling further items; they stay waiting.
func (q *Queue) RunAll(ctx context.Context) (BatchResult, bool) {
	q.mu.Lock()
	if q.uploading {
		q.mu.Unlock()
		return BatchResult{}, false
	}
	var pending []*Item
	for _, it := range q.items {
		if it.Status == StatusWaiting {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		q.mu.Unlock()
		return BatchResult{}, false
	}
	q.uploading = true
	q.mu.Unlock()

	var result BatchResult
	for _, it := range pending {
		if ctx.Err() != nil {
			break
		}
		file, ok := q.begin(it.ID)
		if !ok {
			continue // removed or cleared before its turn
		}

		q.update(it.ID, func(item *Item) {
			item.Progress = ProgressInFlight
		})

		if err := q.uploader.Upload(ctx, file); err != nil {
			result.Failed++
			msg := failureMessage(err)
			q.update(it.ID, func(item *Item) {
				item.Status = StatusError
				item.Progress = 0
				item.Error = msg
			})
			continue
		}

		result.Succeeded++
		q.update(it.ID, func(item *Item) {
			item.Status = StatusDone
			item.Progress = ProgressComplete
		})
	}

	q.mu.Lock()
	q.uploading = false
	q.mu.Unlock()

	if result.Succeeded > 0 {
		q.notifyBatch(result)
		q.schedulePurge()
	}
	return result, true
}

// Close stops a pending purge timer.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.purgeTimer != nil {
		q.purgeTimer.Stop()
		q.purgeTimer = nil
	}
}

func (q *Queue) begin(id int64) (File, bool) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 || q.items[idx].Status != StatusWaiting {
		q.mu.Unlock()
		return nil, false
	}
	item := q.items[idx]
	item.Status = StatusUploading
	item.Progress = ProgressStarted
	snapshot := *item
	q.mu.Unlock()

	q.notifyItem(snapshot)
	return snapshot.file, true
}

// update applies patch to the item with the given id if it is still queued.
func (q *Queue) update(id int64, patch func(*Item)) {
	q.mu.Lock()
	idx := q.indexLocked(id)
	if idx < 0 {
		q.mu.Unlock()
		return
	}
	patch(q.items[idx])
	snapshot := *q.items[idx]
	q.mu.Unlock()

	q.notifyItem(snapshot)
}

func (q *Queue) schedulePurge() {
	if q.purgeDelay <= 0 {
		q.purgeDone()
		return
	}
	q.mu.Lock()
	if q.purgeTimer != nil {
		q.purgeTimer.Stop()
	}
	q.purgeTimer = time.AfterFunc(q.purgeDelay, q.purgeDone)
	q.mu.Unlock()
}

func (q *Queue) purgeDone() {
	q.mu.Lock()
	kept := q.items[:0]
	removed := 0
	for _, it := range q.items {
		if it.Status == StatusDone {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	snapshot := q.snapshotLocked()
	q.mu.Unlock()

	if removed > 0 {
		q.notifyQueue(snapshot)
	}
}

func (q *Queue) indexLocked(id int64) int {
	for i, it := range q.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) snapshotLocked() []Item {
	out := make([]Item, len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	return out
}

func (q *Queue) currentObservers() []Observer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Observer(nil), q.observers...)
}

func (q *Queue) notifyItem(item Item) {
	for _, o := range q.currentObservers() {
		o.ItemChanged(item)
	}
}

func (q *Queue) notifyQueue(items []Item) {
	for _, o := range q.currentObservers() {
		o.QueueChanged(items)
	}
}

func (q *Queue) notifyBatch(result BatchResult) {
	for _, o := range q.currentObservers() {
		o.BatchCompleted(result)
	}
}

func failureMessage(err error) string {
	var me MessageError
	if errors.As(err, &me) {
		if msg := me.UserMessage(); msg != "" {
			return msg
		}
	}
	return DefaultErrorMessage
}
