package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier accepts notification tasks without blocking. The return value only reports
// whether the task was accepted; delivery outcome is visible in logs and metrics.
type Notifier interface {
	Notify(task *models.NotificationTask) bool
}

// TaskHandler performs the work for one task: delivering it, or forwarding it to a queue.
type TaskHandler interface {
	Handle(ctx context.Context, task *models.NotificationTask) error
}

// NewNotificationTask stamps a task with an id and creation time.
func NewNotificationTask(kind models.NotificationKind, recipient string, ipo *models.IPO, app *models.Application) *models.NotificationTask {
	return &models.NotificationTask{
		ID:          uuid.NewString(),
		Kind:        kind,
		Recipient:   recipient,
		IPO:         ipo.Clone(),
		Application: app.Clone(),
		CreatedAt:   time.Now().UTC(),
	}
}

// NotificationProcessor composes and delivers a task, retrying the transport.
type NotificationProcessor struct {
	composer    *NotificationComposer
	sender      EmailSender
	sendTimeout time.Duration
	maxRetries  int
	backoff     func(attempt int) time.Duration
	metrics     *shared.ServiceMetrics
}

func NewNotificationProcessor(composer *NotificationComposer, sender EmailSender, cfg shared.NotificationConfig, metrics *shared.ServiceMetrics) *NotificationProcessor {
	if sender == nil {
		sender = LogSender{}
	}
	return &NotificationProcessor{
		composer:    composer,
		sender:      sender,
		sendTimeout: cfg.SendTimeout,
		maxRetries:  cfg.MaxRetryAttempts,
		backoff:     shared.RetryBackoff,
		metrics:     metrics,
	}
}

func (p *NotificationProcessor) Handle(ctx context.Context, task *models.NotificationTask) error {
	logger := logrus.WithFields(logrus.Fields{
		"component": "NotificationProcessor",
		"task_id":   task.ID,
		"kind":      task.Kind,
		"recipient": task.Recipient,
		"sender":    p.sender.Name(),
	})

	msg, err := p.composer.Compose(task)
	if err != nil {
		p.metrics.RecordNotification(string(task.Kind), false)
		logger.WithError(err).Error("Failed to compose notification")
		return err
	}

	var lastErr error
attempts:
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				break attempts
			case <-time.After(p.backoff(attempt)):
			}
		}

		lastErr = p.send(ctx, msg)
		if lastErr == nil {
			p.metrics.RecordNotification(string(task.Kind), true)
			logger.WithField("attempts", attempt+1).Info("Notification delivered")
			return nil
		}
		logger.WithError(lastErr).WithField("attempt", attempt+1).Warn("Notification delivery attempt failed")
	}

	p.metrics.RecordNotification(string(task.Kind), false)
	logger.WithError(lastErr).Error("Notification delivery failed")
	return fmt.Errorf("delivering %s to %s: %w", task.Kind, task.Recipient, lastErr)
}

func (p *NotificationProcessor) send(ctx context.Context, msg *models.EmailMessage) error {
	if p.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.sendTimeout)
		defer cancel()
	}
	return p.sender.Send(ctx, msg)
}

// AsyncDispatcher runs tasks on a fixed worker pool fed by a bounded queue. Notify never
// blocks: when the queue is full the task is dropped with a warning.
type AsyncDispatcher struct {
	handler TaskHandler
	queue   chan *models.NotificationTask
	workers int
	metrics *shared.ServiceMetrics

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewAsyncDispatcher(handler TaskHandler, cfg shared.NotificationConfig, metrics *shared.ServiceMetrics) *AsyncDispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncDispatcher{
		handler: handler,
		queue:   make(chan *models.NotificationTask, queueSize),
		workers: workers,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool. Calling it twice is a no-op.
func (d *AsyncDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	logrus.WithFields(logrus.Fields{
		"component": "AsyncDispatcher",
		"workers":   d.workers,
		"queue":     cap(d.queue),
	}).Info("Notification dispatcher started")
}

func (d *AsyncDispatcher) Notify(task *models.NotificationTask) bool {
	logger := logrus.WithFields(logrus.Fields{
		"component": "AsyncDispatcher",
		"kind":      task.Kind,
		"recipient": task.Recipient,
	})

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		logger.Warn("Dispatcher is shut down, dropping notification")
		return false
	}

	select {
	case d.queue <- task:
		d.metrics.SetNotificationQueueDepth(len(d.queue))
		return true
	default:
		d.metrics.RecordNotification(string(task.Kind), false)
		logger.Warn("Notification queue full, dropping notification")
		return false
	}
}

func (d *AsyncDispatcher) worker(n int) {
	defer d.wg.Done()
	for task := range d.queue {
		d.metrics.SetNotificationQueueDepth(len(d.queue))
		d.run(n, task)
	}
}

func (d *AsyncDispatcher) run(n int, task *models.NotificationTask) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"component": "AsyncDispatcher",
				"worker":    n,
				"task_id":   task.ID,
				"panic":     r,
			}).Error("Notification handler panicked")
		}
	}()

	if err := d.handler.Handle(d.ctx, task); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "AsyncDispatcher",
			"worker":    n,
			"task_id":   task.ID,
		}).WithError(err).Warn("Notification task failed")
	}
}

// Shutdown stops accepting tasks and waits for queued ones to drain. When ctx expires first,
// in-flight deliveries are cancelled.
func (d *AsyncDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	close(d.queue)
	d.mu.Unlock()

	if !started {
		d.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// InlineNotifier runs the handler on its own goroutine per task. Used by tests and by
// command-line tools that have no dispatcher running.
type InlineNotifier struct {
	Handler TaskHandler
	wg      sync.WaitGroup
}

func (n *InlineNotifier) Notify(task *models.NotificationTask) bool {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Handler.Handle(context.Background(), task); err != nil {
			logrus.WithField("component", "InlineNotifier").WithError(err).Warn("Notification task failed")
		}
	}()
	return true
}

// Wait blocks until every task handed to Notify has finished.
func (n *InlineNotifier) Wait() {
	n.wg.Wait()
}
