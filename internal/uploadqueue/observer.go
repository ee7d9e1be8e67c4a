package uploadqueue

// Observer receives queue notifications. Calls are made outside the queue lock,
// in the order the transitions happened.
type Observer interface {
	ItemChanged(item Item)
	QueueChanged(items []Item)
	BatchCompleted(result BatchResult)
}

// Hooks adapts plain functions to Observer. Nil fields are skipped.
type Hooks struct {
	OnItem  func(Item)
	OnQueue func([]Item)
	OnBatch func(BatchResult)
}

func (h Hooks) ItemChanged(item Item) {
	if h.OnItem != nil {
		h.OnItem(item)
	}
}

func (h Hooks) QueueChanged(items []Item) {
	if h.OnQueue != nil {
		h.OnQueue(items)
	}
}

func (h Hooks) BatchCompleted(result BatchResult) {
	if h.OnBatch != nil {
		h.OnBatch(result)
	}
}
