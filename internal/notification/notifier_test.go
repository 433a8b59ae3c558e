package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/internal/family"
	"purchasegate/internal/platform/kafka/producer"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []Message
	err  error
	gate chan struct{}
}

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSink) received() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.msgs...)
}

func TestDispatcher_DeliversInBackground(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, WithBuffer(4))

	parentID := domain.ParentID(uuid.New())
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), now)

	d.Notify(ctx, parentID, EventApprovalRequested, Payload{PurchaseID: "p-1", Amount: 499})
	d.Close()

	msgs := sink.received()
	require.Len(t, msgs, 1)
	assert.Equal(t, parentID, msgs[0].ParentID)
	assert.Equal(t, EventApprovalRequested, msgs[0].Event)
	assert.Equal(t, now, msgs[0].OccurredAt)
	assert.Equal(t, "req-1", msgs[0].RequestID)
	assert.Equal(t, int64(499), msgs[0].Payload.Amount)
}

func TestDispatcher_NeverBlocksCaller(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	d := NewDispatcher(sink, WithBuffer(1))

	parentID := domain.ParentID(uuid.New())
	done := make(chan struct{})
	go func() {
		for range 10 {
			d.Notify(context.Background(), parentID, EventPurchaseCompleted, Payload{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a stalled sink")
	}

	close(sink.gate)
	d.Close()
	assert.LessOrEqual(t, len(sink.received()), 2, "overflow beyond the buffer is dropped")
}

func TestDispatcher_SinkErrorIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("smtp down")}
	d := NewDispatcher(sink)

	d.Notify(context.Background(), domain.ParentID(uuid.New()), EventApprovalExpired, Payload{})
	d.Close()

	assert.Len(t, sink.received(), 1)
}

func TestDispatcher_NotifyAfterCloseIsDropped(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink)
	d.Close()
	d.Close()

	d.Notify(context.Background(), domain.ParentID(uuid.New()), EventApprovalExpired, Payload{})
	assert.Empty(t, sink.received())
}

func TestFanout_JoinsErrorsAndReachesEverySink(t *testing.T) {
	first := &recordingSink{err: errors.New("first failed")}
	second := &recordingSink{}

	err := Fanout{first, second}.Send(context.Background(), Message{Event: EventPurchaseRefunded})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first failed")
	assert.Len(t, second.received(), 1)
}

type fakeProducer struct {
	got *producer.Message
	err error
}

func (p *fakeProducer) Produce(_ context.Context, msg *producer.Message) error {
	p.got = msg
	return p.err
}

func TestKafkaSink_KeysByParent(t *testing.T) {
	p := &fakeProducer{}
	sink := NewKafkaSink(p, "parent-notifications")
	parentID := domain.ParentID(uuid.New())

	err := sink.Send(context.Background(), Message{ParentID: parentID, Event: EventApprovalRequested, RequestID: "req-9"})
	require.NoError(t, err)
	require.NotNil(t, p.got)
	assert.Equal(t, "parent-notifications", p.got.Topic)
	assert.Equal(t, parentID.String(), string(p.got.Key))
	assert.Equal(t, "approval_requested", p.got.Headers["event"])
	assert.Contains(t, string(p.got.Value), `"event":"approval_requested"`)
}

func TestKafkaSink_WrapsProduceError(t *testing.T) {
	sink := NewKafkaSink(&fakeProducer{err: errors.New("broker unavailable")}, "t")
	err := sink.Send(context.Background(), Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

type fakeSES struct {
	calls []*sesv2.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.calls = append(f.calls, in)
	return &sesv2.SendEmailOutput{}, nil
}

type fakeContacts map[domain.ParentID]*family.Parent

func (f fakeContacts) ParentContact(_ context.Context, id domain.ParentID) (*family.Parent, error) {
	p, ok := f[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "parent not found")
	}
	return p, nil
}

func TestEmailSink(t *testing.T) {
	parentID := domain.ParentID(uuid.New())
	contacts := fakeContacts{parentID: {ID: parentID, Email: "sam@example.com", DisplayName: "Sam"}}

	t.Run("mails approval requests with the deep link", func(t *testing.T) {
		ses := &fakeSES{}
		sink := NewEmailSink(ses, contacts, "noreply@example.com")

		err := sink.Send(context.Background(), Message{
			ParentID: parentID,
			Event:    EventApprovalRequested,
			Payload:  Payload{PackTitle: "Dino Stickers", Amount: 299, Currency: "USD", DeepLink: "https://app.example/approve?t=abc"},
		})
		require.NoError(t, err)
		require.Len(t, ses.calls, 1)
		assert.Equal(t, []string{"sam@example.com"}, ses.calls[0].Destination.ToAddresses)
		body := *ses.calls[0].Content.Simple.Body.Text.Data
		assert.Contains(t, body, "Hi Sam")
		assert.Contains(t, body, "2.99 USD")
		assert.Contains(t, body, "https://app.example/approve?t=abc")
	})

	t.Run("skips events parents are not mailed about", func(t *testing.T) {
		ses := &fakeSES{}
		sink := NewEmailSink(ses, contacts, "noreply@example.com")
		require.NoError(t, sink.Send(context.Background(), Message{ParentID: parentID, Event: EventPurchaseRejected}))
		assert.Empty(t, ses.calls)
	})

	t.Run("unknown parent is an error", func(t *testing.T) {
		sink := NewEmailSink(&fakeSES{}, contacts, "noreply@example.com")
		err := sink.Send(context.Background(), Message{ParentID: domain.ParentID(uuid.New()), Event: EventApprovalExpired})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
