package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jantaseva/civic-workflow/internal/application/port"
	"github.com/jantaseva/civic-workflow/internal/domain/entity"
)

// memNotifRepo is an in-memory NotificationRepository with the same
// compare-and-set semantics as the SQL implementation.
type memNotifRepo struct {
	mu     sync.Mutex
	byID   map[string]*entity.Notification
	byKey  map[string]string
	failOp bool
}

func newMemNotifRepo() *memNotifRepo {
	return &memNotifRepo{
		byID:  make(map[string]*entity.Notification),
		byKey: make(map[string]string),
	}
}

func (m *memNotifRepo) Create(ctx context.Context, n *entity.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOp {
		return port.ErrStoreUnavailable
	}
	if _, ok := m.byKey[n.EventKey]; ok {
		return port.ErrDuplicateEvent
	}
	copied := *n
	m.byID[n.ID] = &copied
	m.byKey[n.EventKey] = n.ID
	return nil
}

func (m *memNotifRepo) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	copied := *n
	return &copied, nil
}

func (m *memNotifRepo) GetByEventKey(ctx context.Context, eventKey string) (*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[eventKey]
	if !ok {
		return nil, port.ErrNotFound
	}
	copied := *m.byID[id]
	return &copied, nil
}

func (m *memNotifRepo) ListByReportID(ctx context.Context, reportID string) ([]*entity.Notification, error) {
	return nil, nil
}

func (m *memNotifRepo) UpdateChannelStatus(ctx context.Context, id, channel, expected, next string, attempts int, lastErr string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return false, port.ErrNotFound
	}

	if n.Outcome(channel).Status != expected {
		return false, nil
	}
	settled := entity.ChannelOutcome{Status: next, Attempts: attempts, LastError: lastErr}
	switch channel {
	case entity.ChannelPush:
		n.Push = settled
	case entity.ChannelSMS:
		n.SMS = settled
	case entity.ChannelEmail:
		n.Email = settled
	}
	return true, nil
}

func (m *memNotifRepo) FinalizeDelivery(ctx context.Context, id, deliveryStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byID[id]
	if !ok {
		return port.ErrNotFound
	}
	if n.DeliveryStatus != entity.DeliveryPending {
		return nil
	}
	n.DeliveryStatus = deliveryStatus
	if deliveryStatus == entity.DeliverySent {
		now := time.Now()
		n.SentAt = &now
	}
	return nil
}

func (m *memNotifRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*entity.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Notification
	for _, n := range m.byID {
		if n.DeliveryStatus == entity.DeliveryPending {
			copied := *n
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeSender counts sends and fails a configurable number of times
type fakeSender struct {
	channel string

	mu        sync.Mutex
	calls     int
	failTimes int
}

func (f *fakeSender) Channel() string { return f.channel }

func (f *fakeSender) Send(ctx context.Context, recipient string, n *entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failTimes {
		return errors.New("provider unavailable")
	}
	return nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

func testDraft() *entity.Notification {
	return &entity.Notification{
		ReportID:       "report-1",
		EventKey:       "report-1:approved:pending:1",
		Kind:           "approved",
		Title:          "Report Status Updated",
		Body:           "Your report has been approved.",
		ReportStatus:   "pending",
		RecipientPhone: "+15550100",
		RecipientEmail: "citizen@example.com",
		DeliveryStatus: entity.DeliveryPending,
	}
}

func testSenders(push, sms, email *fakeSender) []port.ChannelSender {
	return []port.ChannelSender{push, sms, email}
}

func newSenderTrio() (*fakeSender, *fakeSender, *fakeSender) {
	return &fakeSender{channel: entity.ChannelPush},
		&fakeSender{channel: entity.ChannelSMS},
		&fakeSender{channel: entity.ChannelEmail}
}

func fastConfig() Config {
	return Config{MaxRetries: 2, RetryBackoff: time.Millisecond}
}

func TestDispatcher_AllChannelsSucceed(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	n, err := d.Dispatch(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, entity.DeliverySent, n.DeliveryStatus)
	assert.NotNil(t, n.SentAt)
	for _, channel := range entity.Channels {
		outcome := n.Outcome(channel)
		assert.Equal(t, entity.ChannelSent, outcome.Status, channel)
		assert.Equal(t, 1, outcome.Attempts, channel)
	}
}

func TestDispatcher_PartialFailureIsStillSent(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	sms.failTimes = 100
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	n, err := d.Dispatch(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, entity.DeliverySent, n.DeliveryStatus)
	assert.Equal(t, entity.ChannelSent, n.Outcome(entity.ChannelPush).Status)
	assert.Equal(t, entity.ChannelFailed, n.Outcome(entity.ChannelSMS).Status)
	assert.Equal(t, 3, n.Outcome(entity.ChannelSMS).Attempts, "initial attempt plus two retries")
	assert.NotEmpty(t, n.Outcome(entity.ChannelSMS).LastError)
}

func TestDispatcher_AllChannelsFail(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	push.failTimes, sms.failTimes, email.failTimes = 100, 100, 100
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	n, err := d.Dispatch(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, entity.DeliveryFailed, n.DeliveryStatus)
	assert.Nil(t, n.SentAt)
}

func TestDispatcher_RetryThenSuccess(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	email.failTimes = 1
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	n, err := d.Dispatch(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, entity.ChannelSent, n.Outcome(entity.ChannelEmail).Status)
	assert.Equal(t, 2, n.Outcome(entity.ChannelEmail).Attempts)
	assert.Equal(t, entity.DeliverySent, n.DeliveryStatus)
}

func TestDispatcher_MissingRecipientSkipsChannels(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	draft := testDraft()
	draft.RecipientPhone = ""

	n, err := d.Dispatch(context.Background(), draft)
	require.NoError(t, err)

	assert.Equal(t, entity.ChannelSkipped, n.Outcome(entity.ChannelPush).Status)
	assert.Equal(t, entity.ChannelSkipped, n.Outcome(entity.ChannelSMS).Status)
	assert.Equal(t, entity.ChannelSent, n.Outcome(entity.ChannelEmail).Status)
	assert.Equal(t, entity.DeliverySent, n.DeliveryStatus)
	assert.Zero(t, push.callCount())
	assert.Zero(t, sms.callCount())
}

func TestDispatcher_NoContactDataSettlesFailed(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	draft := testDraft()
	draft.RecipientPhone = ""
	draft.RecipientEmail = ""

	n, err := d.Dispatch(context.Background(), draft)
	require.NoError(t, err)

	assert.Equal(t, entity.DeliveryFailed, n.DeliveryStatus)
	assert.Zero(t, push.callCount()+sms.callCount()+email.callCount())
}

func TestDispatcher_DuplicateDispatchSkipped(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	first, err := d.Dispatch(context.Background(), testDraft())
	require.NoError(t, err)
	require.Equal(t, entity.DeliverySent, first.DeliveryStatus)

	second, err := d.Dispatch(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "same event key must resolve to one audit row")
	assert.Equal(t, 1, push.callCount(), "settled notification must not be re-sent")
	assert.Equal(t, 1, sms.callCount())
	assert.Equal(t, 1, email.callCount())
}

func TestDispatcher_RedispatchResumesPendingChannels(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	// Seed a row stuck pending on the email channel, as left behind by a
	// crashed dispatch.
	stuck := testDraft()
	stuck.ID = "n-stuck"
	stuck.Push = entity.ChannelOutcome{Status: entity.ChannelSent, Attempts: 1}
	stuck.SMS = entity.ChannelOutcome{Status: entity.ChannelSent, Attempts: 1}
	stuck.Email = entity.ChannelOutcome{Status: entity.ChannelPending}
	require.NoError(t, repo.Create(context.Background(), stuck))

	n, err := d.Dispatch(context.Background(), testDraft())
	require.NoError(t, err)

	assert.Equal(t, "n-stuck", n.ID)
	assert.Equal(t, entity.ChannelSent, n.Outcome(entity.ChannelEmail).Status)
	assert.Equal(t, entity.DeliverySent, n.DeliveryStatus)
	assert.Zero(t, push.callCount(), "settled channels are not retried")
	assert.Zero(t, sms.callCount())
	assert.Equal(t, 1, email.callCount())
}

func TestDispatcher_ConcurrentSameEventSingleRow(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Dispatch(context.Background(), testDraft())
		}()
	}
	wg.Wait()

	repo.mu.Lock()
	rows := len(repo.byID)
	repo.mu.Unlock()
	assert.Equal(t, 1, rows, "concurrent dispatches of one event share one row")
}

func TestDispatcher_DispatchAsyncAfterClose(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	require.NoError(t, d.Close())
	assert.False(t, d.DispatchAsync(context.Background(), testDraft()))
}

func TestDispatcher_CloseWaitsForInflight(t *testing.T) {
	repo := newMemNotifRepo()
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	require.True(t, d.DispatchAsync(context.Background(), testDraft()))
	require.NoError(t, d.Close())

	n, err := repo.GetByEventKey(context.Background(), testDraft().EventKey)
	require.NoError(t, err)
	assert.Equal(t, entity.DeliverySent, n.DeliveryStatus)
}

func TestDispatcher_RecordCreationFailure(t *testing.T) {
	repo := newMemNotifRepo()
	repo.failOp = true
	push, sms, email := newSenderTrio()
	d := New(repo, testSenders(push, sms, email), fastConfig(), nopLogger{})

	_, err := d.Dispatch(context.Background(), testDraft())
	assert.ErrorIs(t, err, port.ErrStoreUnavailable)
	assert.Zero(t, push.callCount(), "no send without an audit row")
}
