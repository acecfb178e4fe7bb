package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *usecase.IndexPublishedEvent {
	return &usecase.IndexPublishedEvent{
		BuildID:         "b-1",
		Kind:            "annoy",
		Size:            42,
		Dimension:       512,
		ModelVersion:    "clip-vit-b32",
		ArtifactsPrefix: "indexes/b-1",
		Files:           []string{"index.ann", "id_map.json", "manifest.json"},
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestIndexPublishedCodec(t *testing.T) {
	data, err := EncodeIndexPublished(testEvent())
	require.NoError(t, err)

	got, err := DecodeIndexPublished(data)
	require.NoError(t, err)
	assert.Equal(t, testEvent(), got)
}

func TestDecodeRejectsForeignPayload(t *testing.T) {
	_, err := DecodeIndexPublished([]byte("not a protobuf"))
	assert.Error(t, err)

	event := testEvent()
	event.BuildID = ""
	data, err := EncodeIndexPublished(event)
	require.NoError(t, err)
	_, err = DecodeIndexPublished(data)
	assert.Error(t, err)
}

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []*usecase.OutboxEvent
	processed []int64
}

func (f *fakeOutbox) Create(_ context.Context, event *usecase.OutboxEvent) (*usecase.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = int64(len(f.pending) + 1)
	f.pending = append(f.pending, event)
	return event, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(_ context.Context, limit int) ([]*usecase.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := min(limit, len(f.pending))
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	return batch, nil
}

func (f *fakeOutbox) MarkAsProcessed(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return nil
}

type fakeProducer struct {
	mu   sync.Mutex
	fail map[string]error
	sent []*usecase.WriteRawMessageReq
}

func (f *fakeProducer) WriteRawMessage(_ context.Context, req *usecase.WriteRawMessageReq) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[req.Key]; err != nil {
		return err
	}
	f.sent = append(f.sent, req)
	return nil
}

func TestOutboxWorkerDrain(t *testing.T) {
	outbox := &fakeOutbox{}
	producer := &fakeProducer{fail: map[string]error{"b-bad": errors.New("message too large")}}
	for _, id := range []string{"b-1", "b-bad", "b-2"} {
		_, err := outbox.Create(context.Background(), usecase.NewOutboxEvent(usecase.IndexPublished, id, []byte(id)))
		require.NoError(t, err)
	}

	w := NewOutboxWorker(outbox, logger.NewNopLogger(), producer, "")
	w.drain(context.Background())

	require.Len(t, producer.sent, 2)
	assert.Equal(t, "b-1", producer.sent[0].Key)
	assert.Equal(t, []byte("b-2"), producer.sent[1].Payload)
	assert.Equal(t, []int64{1, 3}, outbox.processed)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("dial tcp: connection refused")))
	assert.True(t, isRetryableError(errors.New("read: I/O timeout")))
	assert.False(t, isRetryableError(errors.New("message too large")))
	assert.False(t, isRetryableError(nil))
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := f.msgs[0]
	f.msgs = f.msgs[1:]
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeApplier struct {
	applied []string
	err     error
	calls   int
	cancel  context.CancelFunc
	want    int
}

func (f *fakeApplier) ApplyPublished(_ context.Context, event *usecase.IndexPublishedEvent) error {
	f.calls++
	if f.calls >= f.want {
		f.cancel()
	}
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, event.BuildID)
	return nil
}

func TestConsumerAppliesEvents(t *testing.T) {
	data, err := EncodeIndexPublished(testEvent())
	require.NoError(t, err)

	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte("garbage")},
		{Offset: 2, Value: data},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applier := &fakeApplier{cancel: cancel, want: 1}

	c := newConsumer(reader, applier, logger.NewNopLogger())
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, []string{"b-1"}, applier.applied)
	assert.Equal(t, []int64{1, 2}, reader.committed)
}

func TestConsumerDoesNotRetryModelMismatch(t *testing.T) {
	data, err := EncodeIndexPublished(testEvent())
	require.NoError(t, err)

	reader := &fakeReader{msgs: []kafka.Message{{Offset: 7, Value: data}}}
	applier := &fakeApplier{err: e.Wrap("apply", e.ErrModelVersionMismatch), cancel: func() {}, want: 100}

	c := newConsumer(reader, applier, logger.NewNopLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, 1, applier.calls)
	assert.Equal(t, []int64{7}, reader.committed)
}
