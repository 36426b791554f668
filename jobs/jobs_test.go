package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	ipos    []models.IPO
	err     error
	askedOn time.Time
}

func (f *fakeCatalog) OpeningOn(_ context.Context, day time.Time) ([]models.IPO, error) {
	f.askedOn = day
	return f.ipos, f.err
}

type fakeRecipients []string

func (f fakeRecipients) ListRecipients(context.Context) ([]string, error) {
	return f, nil
}

type collectingNotifier struct {
	mu     sync.Mutex
	tasks  []*models.NotificationTask
	accept int
}

func (n *collectingNotifier) Notify(task *models.NotificationTask) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.tasks) >= n.accept {
		return false
	}
	n.tasks = append(n.tasks, task)
	return true
}

func TestOpeningAlertQueuesOneTaskPerRecipientAndListing(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{ipos: []models.IPO{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Bolt"}}}
	notifier := &collectingNotifier{accept: 100}

	job := NewOpeningAlertJob(catalog, fakeRecipients{"a@example.com", "b@example.com"}, notifier)
	job.Now = func() time.Time { return now }

	queued, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, queued)
	assert.Equal(t, now, catalog.askedOn)

	require.Len(t, notifier.tasks, 4)
	for _, task := range notifier.tasks {
		assert.Equal(t, models.KindIPOOpening, task.Kind)
		require.NotNil(t, task.IPO)
		assert.Nil(t, task.Application)
	}
	assert.Equal(t, "a@example.com", notifier.tasks[0].Recipient)
	assert.Equal(t, "Acme", notifier.tasks[0].IPO.Name)
	assert.Equal(t, "Bolt", notifier.tasks[3].IPO.Name)
}

func TestOpeningAlertCountsOnlyAcceptedTasks(t *testing.T) {
	catalog := &fakeCatalog{ipos: []models.IPO{{ID: 1, Name: "Acme"}}}
	notifier := &collectingNotifier{accept: 1}

	queued, err := NewOpeningAlertJob(catalog, fakeRecipients{"a@example.com", "b@example.com"}, notifier).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, queued)
}

func TestOpeningAlertWithNothingOpening(t *testing.T) {
	notifier := &collectingNotifier{accept: 100}
	queued, err := NewOpeningAlertJob(&fakeCatalog{}, fakeRecipients{"a@example.com"}, notifier).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, queued)
	assert.Empty(t, notifier.tasks)
}

func TestOpeningAlertPropagatesCatalogErrors(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("store offline")}
	_, err := NewOpeningAlertJob(catalog, fakeRecipients{}, &collectingNotifier{}).RunOnce(context.Background())
	assert.EqualError(t, err, "store offline")
}

func TestCacheCleanupJob(t *testing.T) {
	cache := services.NewCacheServiceWithConfig(shared.CacheConfig{DefaultTTL: time.Minute, MaxSize: 10}, nil)
	cache.SetWithTTL("stale", 1, -time.Second)
	cache.Set("fresh", 2)

	job := NewCacheCleanupJob(cache)
	assert.Equal(t, "cache-cleanup", job.Name())
	job.Run()
	assert.Equal(t, 1, cache.Size())
}

func TestSchedulerRejectsInvalidSpec(t *testing.T) {
	scheduler := NewScheduler()
	err := scheduler.Schedule("every now and then", FuncJob{JobName: "bad", Fn: func() {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.False(t, scheduler.Scheduled("bad"))
}

func TestSchedulerRunsJobs(t *testing.T) {
	scheduler := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, scheduler.Schedule("@every 1s", FuncJob{JobName: "tick", Fn: func() { runs.Add(1) }}))
	assert.True(t, scheduler.Scheduled("tick"))

	scheduler.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, scheduler.Stop(ctx))
}
