package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakySender fails the first failures sends
type flakySender struct {
	mu       sync.Mutex
	failures int
	sent     []*models.EmailMessage
	attempts int
}

func (s *flakySender) Name() string { return "flaky" }

func (s *flakySender) Send(_ context.Context, msg *models.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("connection refused")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestProcessor(t *testing.T, sender EmailSender, retries int) *NotificationProcessor {
	t.Helper()
	processor := NewNotificationProcessor(newTestComposer(t), sender, shared.NotificationConfig{
		SendTimeout:      time.Second,
		MaxRetryAttempts: retries,
	}, nil)
	processor.backoff = func(int) time.Duration { return time.Millisecond }
	return processor
}

func openingTask(recipient string) *models.NotificationTask {
	return NewNotificationTask(models.KindIPOOpening, recipient, testListing(), nil)
}

func TestProcessorRetriesTransport(t *testing.T) {
	sender := &flakySender{failures: 2}
	processor := newTestProcessor(t, sender, 2)

	require.NoError(t, processor.Handle(context.Background(), openingTask("asha@example.com")))
	assert.Equal(t, 3, sender.attempts)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "asha@example.com", sender.sent[0].To)
}

func TestProcessorGivesUp(t *testing.T) {
	sender := &flakySender{failures: 10}
	processor := newTestProcessor(t, sender, 1)

	err := processor.Handle(context.Background(), openingTask("asha@example.com"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 2, sender.attempts)
}

func TestProcessorDoesNotSendUncomposableTasks(t *testing.T) {
	sender := &flakySender{}
	processor := newTestProcessor(t, sender, 2)

	err := processor.Handle(context.Background(), &models.NotificationTask{Kind: models.KindIPOOpening, Recipient: "a@b.c"})
	require.Error(t, err)
	assert.Zero(t, sender.attempts)
}

// countingHandler counts tasks and optionally blocks until released
type countingHandler struct {
	handled atomic.Int32
	release chan struct{}
	panicOn string
}

func (h *countingHandler) Handle(ctx context.Context, task *models.NotificationTask) error {
	if h.release != nil {
		select {
		case <-h.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if task.Recipient == h.panicOn {
		panic("boom")
	}
	h.handled.Add(1)
	return nil
}

func TestDispatcherDrainsOnShutdown(t *testing.T) {
	handler := &countingHandler{}
	dispatcher := NewAsyncDispatcher(handler, shared.NotificationConfig{Workers: 2, QueueSize: 10}, nil)
	dispatcher.Start()
	dispatcher.Start()

	for i := 0; i < 5; i++ {
		assert.True(t, dispatcher.Notify(openingTask("asha@example.com")))
	}

	require.NoError(t, dispatcher.Shutdown(context.Background()))
	assert.Equal(t, int32(5), handler.handled.Load())

	assert.False(t, dispatcher.Notify(openingTask("late@example.com")), "closed dispatcher drops tasks")
	assert.NoError(t, dispatcher.Shutdown(context.Background()))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	handler := &countingHandler{}
	dispatcher := NewAsyncDispatcher(handler, shared.NotificationConfig{Workers: 1, QueueSize: 1}, nil)

	assert.True(t, dispatcher.Notify(openingTask("first@example.com")))
	assert.False(t, dispatcher.Notify(openingTask("second@example.com")))

	dispatcher.Start()
	require.NoError(t, dispatcher.Shutdown(context.Background()))
	assert.Equal(t, int32(1), handler.handled.Load())
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	handler := &countingHandler{panicOn: "bad@example.com"}
	dispatcher := NewAsyncDispatcher(handler, shared.NotificationConfig{Workers: 1, QueueSize: 10}, nil)
	dispatcher.Start()

	dispatcher.Notify(openingTask("bad@example.com"))
	dispatcher.Notify(openingTask("good@example.com"))

	require.NoError(t, dispatcher.Shutdown(context.Background()))
	assert.Equal(t, int32(1), handler.handled.Load())
}

func TestDispatcherShutdownDeadline(t *testing.T) {
	handler := &countingHandler{release: make(chan struct{})}
	dispatcher := NewAsyncDispatcher(handler, shared.NotificationConfig{Workers: 1, QueueSize: 10}, nil)
	dispatcher.Start()
	dispatcher.Notify(openingTask("slow@example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := dispatcher.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInlineNotifier(t *testing.T) {
	handler := &countingHandler{}
	notifier := &InlineNotifier{Handler: handler}

	assert.True(t, notifier.Notify(openingTask("a@example.com")))
	assert.True(t, notifier.Notify(openingTask("b@example.com")))
	notifier.Wait()
	assert.Equal(t, int32(2), handler.handled.Load())
}

func TestSMTPSenderBuildsMultipartMessage(t *testing.T) {
	var captured struct {
		addr string
		from string
		to   []string
		body string
	}
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "mailer@example.com", Password: "pw"})
	sender.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr, captured.from, captured.to, captured.body = addr, from, to, string(msg)
		return nil
	}

	err := sender.Send(context.Background(), &models.EmailMessage{
		To: "asha@example.com", Subject: "🔔 Open", HTMLBody: "<p>Hi</p>", TextBody: "Hi",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", captured.addr)
	assert.Equal(t, "mailer@example.com", captured.from)
	assert.Equal(t, []string{"asha@example.com"}, captured.to)
	assert.Contains(t, captured.body, "Content-Type: multipart/alternative")
	assert.Contains(t, captured.body, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, captured.body, "<p>Hi</p>")
	assert.Contains(t, captured.body, "Subject: =?utf-8?q?")
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "mailer@example.com"})
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("message should not be sent")
		return nil
	}

	err := sender.Send(context.Background(), &models.EmailMessage{To: "asha@example.com\r\nBcc: x@evil.test", Subject: "x"})
	assert.Error(t, err)
}

func TestWebhookSender(t *testing.T) {
	var received atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sender := NewWebhookSender(server.URL, nil, 0)
	err := sender.Send(context.Background(), &models.EmailMessage{To: "asha@example.com", Subject: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), received.Load())
}

func TestMultiSenderFailsOnlyWhenAllFail(t *testing.T) {
	msg := &models.EmailMessage{To: "asha@example.com"}

	partial := MultiSender{&flakySender{failures: 1}, LogSender{}}
	assert.NoError(t, partial.Send(context.Background(), msg))
	assert.Equal(t, "flaky+log", partial.Name())

	broken := MultiSender{&flakySender{failures: 1}, &flakySender{failures: 1}}
	assert.Error(t, broken.Send(context.Background(), msg))
}

func TestDecodeTask(t *testing.T) {
	task, err := decodeTask(redis.XMessage{ID: "1-0", Values: map[string]interface{}{
		"task": `{"id":"t1","kind":"ipo_opening","recipient":"asha@example.com","ipo":{"id":3,"name":"Acme Tech"}}`,
	}})
	require.NoError(t, err)
	assert.Equal(t, models.KindIPOOpening, task.Kind)
	assert.Equal(t, "Acme Tech", task.IPO.Name)

	_, err = decodeTask(redis.XMessage{ID: "2-0", Values: map[string]interface{}{"task": 42}})
	assert.Error(t, err)

	_, err = decodeTask(redis.XMessage{ID: "3-0", Values: map[string]interface{}{"task": "{"}})
	assert.Error(t, err)
}

func TestSubjectEncodingKeepsASCII(t *testing.T) {
	raw, err := buildMIMEMessage("mailer@example.com", &models.EmailMessage{To: "a@example.com", Subject: "Plain subject"})
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "Subject: Plain subject\r\n"))
}
