package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/websocket"
)

type sentBatch struct {
	recipients []uint64
	template   string
	payload    map[string]interface{}
}

type recordingDispatcher struct {
	mu      sync.Mutex
	err     error
	batches []sentBatch
}

func (d *recordingDispatcher) Channel() string { return "test" }

func (d *recordingDispatcher) Send(ctx context.Context, recipients []entities.User, templateKey string, payload map[string]interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]uint64, 0, len(recipients))
	for _, u := range recipients {
		ids = append(ids, u.ID)
	}
	d.batches = append(d.batches, sentBatch{recipients: ids, template: templateKey, payload: payload})
	return d.err
}

type notificationFixture struct {
	db         *memDB
	outbox     *fakeOutboxRepo
	dispatcher *recordingDispatcher
	service    *NotificationService
	now        time.Time
}

func newNotificationFixture(maxAttempts int) *notificationFixture {
	db := newMemDB()
	db.addUser(requesterID, financeDept, "Заявитель")
	db.addUser(financeHOU, financeDept, "HOU Финансов", constants.RoleDeptHead)
	db.addUser(12, financeDept, "Второй HOU", constants.RoleDeptHead)
	db.addUser(itHeadID, itDept, "HOU ИТ", constants.RoleDeptHead)

	logger := zap.NewNop()
	f := &notificationFixture{
		db:         db,
		outbox:     &fakeOutboxRepo{db: db},
		dispatcher: &recordingDispatcher{},
		now:        time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	directory := NewActorDirectory(&fakeUserRepo{db: db}, nil, time.Minute, logger)
	f.service = NewNotificationService(f.outbox, directory, f.dispatcher, maxAttempts, 10*time.Minute, logger)
	f.service.now = func() time.Time { return f.now }
	return f
}

func financeHOUIntent(actor uint64, attempts int) *entities.NotificationIntent {
	dept := financeDept
	return &entities.NotificationIntent{
		ID:          7,
		EventID:     uuid.New(),
		CRFID:       3,
		TemplateKey: TemplateCRFCreated,
		Recipients:  []entities.RecipientQuery{{Role: constants.RoleDeptHead, DepartmentID: &dept}},
		Context:     map[string]interface{}{"crf_number": "2026/03/003"},
		ActorID:     &actor,
		Status:      constants.OutboxStatusPending,
		Attempts:    attempts,
	}
}

func TestNotificationService_DeliverExcludesActor(t *testing.T) {
	f := newNotificationFixture(5)
	intent := financeHOUIntent(financeHOU, 0)

	require.NoError(t, f.service.Deliver(context.Background(), intent))

	require.Len(t, f.dispatcher.batches, 1)
	batch := f.dispatcher.batches[0]
	assert.Equal(t, []uint64{12}, batch.recipients)
	assert.Equal(t, TemplateCRFCreated, batch.template)
	assert.Equal(t, intent.EventID.String(), batch.payload["event_id"])
	assert.Equal(t, uint64(3), batch.payload["crf_id"])
	assert.NotContains(t, intent.Context, "event_id")

	require.Len(t, f.outbox.updates, 1)
	assert.Equal(t, constants.OutboxStatusSent, f.outbox.updates[0].status)
}

func TestNotificationService_NoRecipientsStillMarksSent(t *testing.T) {
	f := newNotificationFixture(5)
	intent := financeHOUIntent(financeHOU, 0)
	intent.Recipients = nil

	require.NoError(t, f.service.Deliver(context.Background(), intent))
	assert.Empty(t, f.dispatcher.batches)
	require.Len(t, f.outbox.updates, 1)
	assert.Equal(t, constants.OutboxStatusSent, f.outbox.updates[0].status)
}

func TestNotificationService_FailureSchedulesRetry(t *testing.T) {
	f := newNotificationFixture(5)
	f.dispatcher.err = errors.New("telegram недоступен")

	err := f.service.Deliver(context.Background(), financeHOUIntent(requesterID, 2))
	require.ErrorIs(t, err, apperrors.ErrNotificationDispatch)

	require.Len(t, f.outbox.updates, 1)
	u := f.outbox.updates[0]
	assert.Equal(t, constants.OutboxStatusFailed, u.status)
	assert.Equal(t, 3, u.attempts)
	assert.Contains(t, u.lastError, "telegram недоступен")

	// третья попытка: 4s и до секунды случайной добавки
	delay := u.availableAt.Sub(f.now)
	assert.GreaterOrEqual(t, delay, 4*time.Second)
	assert.LessOrEqual(t, delay, 5*time.Second)
}

func TestNotificationService_LastAttemptMarksDead(t *testing.T) {
	f := newNotificationFixture(3)
	f.dispatcher.err = errors.New("timeout")

	err := f.service.Deliver(context.Background(), financeHOUIntent(requesterID, 2))
	require.ErrorIs(t, err, apperrors.ErrNotificationDispatch)

	require.Len(t, f.outbox.updates, 1)
	assert.Equal(t, constants.OutboxStatusDead, f.outbox.updates[0].status)
	assert.Equal(t, 3, f.outbox.updates[0].attempts)
}

func TestNotificationRelay_ProcessOnce(t *testing.T) {
	f := newNotificationFixture(5)
	f.outbox.due = []entities.NotificationIntent{*financeHOUIntent(requesterID, 1), *financeHOUIntent(requesterID, 0)}

	relay := NewNotificationRelay(f.outbox, f.service, time.Second, 10, time.Minute, zap.NewNop())
	n, err := relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.dispatcher.batches, 2)

	n, err = relay.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotificationRelay_RunStopsOnCancel(t *testing.T) {
	f := newNotificationFixture(5)
	relay := NewNotificationRelay(f.outbox, f.service, 10*time.Millisecond, 10, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay не остановился")
	}
}

func TestNotificationRenderer(t *testing.T) {
	r := NewNotificationRenderer("https://crf.example.org/")
	n := r.Render("crf.reject", map[string]interface{}{
		"crf_id":       float64(42),
		"crf_number":   "2026/03/042",
		"status":       float64(13),
		"status_label": "Rejected by Dept Head",
		"actor_name":   "Иванов <HOU>",
		"remark":       "Нет бюджета",
		"event_id":     "e-1",
	})

	assert.Equal(t, uint64(42), n.CRFID)
	assert.Equal(t, 13, n.Status)
	assert.Equal(t, "Заявка 2026/03/042 отклонена", n.Title)
	assert.Equal(t, "https://crf.example.org/crfs/42", n.Link)
	assert.Contains(t, n.Body, "Комментарий: Нет бюджета")

	html := n.TelegramHTML()
	assert.Contains(t, html, "Иванов &lt;HOU&gt;")
	assert.Contains(t, html, `<a href="https://crf.example.org/crfs/42">`)

	unknown := r.Render("crf.something", map[string]interface{}{"crf_number": "X"})
	assert.Equal(t, "Заявка X: изменение статуса", unknown.Title)
}

type fakeTelegram struct {
	chats []int64
	err   error
}

func (f *fakeTelegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.chats = append(f.chats, chatID)
	return f.err
}

func TestTelegramDispatcher_SkipsUsersWithoutChat(t *testing.T) {
	tg := &fakeTelegram{}
	d := NewTelegramDispatcher(tg, NewNotificationRenderer(""), zap.NewNop())

	users := []entities.User{
		{ID: 1, TelegramChatID: sql.NullInt64{Int64: 555, Valid: true}},
		{ID: 2},
		{ID: 3, TelegramChatID: sql.NullInt64{Int64: 777, Valid: true}},
	}
	require.NoError(t, d.Send(context.Background(), users, TemplateCRFCreated, map[string]interface{}{}))
	assert.Equal(t, []int64{555, 777}, tg.chats)

	tg.err = errors.New("bot blocked")
	err := d.Send(context.Background(), users[:1], TemplateCRFCreated, map[string]interface{}{})
	assert.ErrorContains(t, err, "user 1")
}

type fakeMessenger struct {
	online   map[uint64]bool
	messages []websocket.CRFNotification
}

func (m *fakeMessenger) SendMessageToUser(userID uint64, payload interface{}, messageType string) (int, error) {
	if messageType != "crf_notification" {
		return 0, errors.New("unexpected type " + messageType)
	}
	if !m.online[userID] {
		return 0, nil
	}
	m.messages = append(m.messages, payload.(websocket.CRFNotification))
	return 1, nil
}

func TestWebSocketDispatcher_OfflineUserIsNotAnError(t *testing.T) {
	hub := &fakeMessenger{online: map[uint64]bool{2: true}}
	d := NewWebSocketDispatcher(hub, NewNotificationRenderer(""), zap.NewNop())

	err := d.Send(context.Background(), []entities.User{{ID: 1}, {ID: 2}}, "crf.mark_closed", map[string]interface{}{
		"crf_id":     uint64(9),
		"crf_number": "2026/03/009",
	})
	require.NoError(t, err)
	require.Len(t, hub.messages, 1)
	assert.Equal(t, "/crfs/9", hub.messages[0].Link)
	assert.Equal(t, "Заявка 2026/03/009 закрыта", hub.messages[0].Message)
}

func TestMultiDispatcher_RunsAllChannels(t *testing.T) {
	ok := &recordingDispatcher{}
	broken := &recordingDispatcher{err: errors.New("down")}
	d := NewMultiDispatcher(zap.NewNop(), broken, ok)

	err := d.Send(context.Background(), []entities.User{{ID: 1}}, TemplateCRFCreated, map[string]interface{}{})
	require.ErrorIs(t, err, apperrors.ErrNotificationDispatch)
	assert.True(t, strings.Contains(err.Error(), "down"))
	assert.Len(t, ok.batches, 1)

	require.NoError(t, NewMultiDispatcher(zap.NewNop(), ok).Send(context.Background(), nil, TemplateCRFCreated, nil))
}
