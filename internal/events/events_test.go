package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"billflow/desk/internal/uploadqueue"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, events ...*Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(InvoiceRendered, "3", map[string]interface{}{"invoice_id": 7})
	assert.True(t, strings.HasPrefix(e.ID, "evt_"))
	assert.Equal(t, Source, e.Source)
	assert.False(t, e.Timestamp.IsZero())

	raw, err := e.ToJSON()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "invoice.rendered", decoded["type"])
	assert.NotContains(t, decoded, "Key")
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := new(MockWriter)
	p := &KafkaPublisher{writer: w, topic: "billflow.events"}

	e := NewEvent(UploadBatchCompleted, "3", map[string]interface{}{"succeeded": 1})
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 &&
			string(msgs[0].Key) == "3" &&
			string(msgs[0].Headers[0].Value) == string(UploadBatchCompleted) &&
			strings.Contains(string(msgs[0].Value), `"succeeded":1`)
	})).Return(nil)
	w.On("Close").Return(nil)

	require.NoError(t, p.Publish(context.Background(), e))
	require.NoError(t, p.Close())
	w.AssertExpectations(t)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := new(MockWriter)
	w.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("leader not available"))
	p := &KafkaPublisher{writer: w, topic: "billflow.events"}

	err := p.Publish(context.Background(), NewEvent(InvoiceRendered, "", nil))
	assert.ErrorContains(t, err, "leader not available")
}

func TestNewKafkaPublisher_NoBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic")
	assert.Error(t, err)
}

func TestQueueObserver_PublishesTerminalTransitions(t *testing.T) {
	pub := new(MockPublisher)
	var published []*Event
	pub.On("Publish", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		published = append(published, args.Get(1).([]*Event)...)
	}).Return(nil)

	failing := &stubUploader{fail: map[string]bool{"b.txt": true}}
	q := uploadqueue.New(failing, 0, NewQueueObserver(pub, "3"))
	q.Enqueue(uploadqueue.BytesFile("a.txt", []byte("a")), uploadqueue.BytesFile("b.txt", []byte("b")))
	q.RunAll(context.Background())

	require.Len(t, published, 3)
	assert.Equal(t, UploadItemChanged, published[0].Type)
	assert.Equal(t, "done", published[0].Data["status"])
	assert.Equal(t, UploadItemChanged, published[1].Type)
	assert.Equal(t, "Upload failed", published[1].Data["error"])
	assert.Equal(t, UploadBatchCompleted, published[2].Type)
	assert.Equal(t, 1, published[2].Data["succeeded"])
	assert.Equal(t, "3", published[2].Key)
}

func TestQueueObserver_SwallowsPublishErrors(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	q := uploadqueue.New(&stubUploader{}, 0, NewQueueObserver(pub, "3"))
	q.Enqueue(uploadqueue.BytesFile("a.txt", []byte("a")))
	result, ran := q.RunAll(context.Background())

	assert.True(t, ran)
	assert.Equal(t, uploadqueue.BatchResult{Succeeded: 1}, result)
}

type stubUploader struct {
	fail map[string]bool
}

func (s *stubUploader) Upload(ctx context.Context, f uploadqueue.File) error {
	if s.fail[f.Name()] {
		return errors.New("boom")
	}
	return nil
}
