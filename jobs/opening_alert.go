package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/sirupsen/logrus"
)

// IPOSource lists the listings that open on a given day
type IPOSource interface {
	OpeningOn(ctx context.Context, day time.Time) ([]models.IPO, error)
}

// RecipientSource lists every address that should receive catalog alerts
type RecipientSource interface {
	ListRecipients(ctx context.Context) ([]string, error)
}

// OpeningAlertJob queues an "IPO is now open" email to every user for each listing
// whose open date is today.
type OpeningAlertJob struct {
	Catalog    IPOSource
	Recipients RecipientSource
	Notifier   services.Notifier
	Now        func() time.Time
}

func NewOpeningAlertJob(catalog IPOSource, recipients RecipientSource, notifier services.Notifier) *OpeningAlertJob {
	return &OpeningAlertJob{
		Catalog:    catalog,
		Recipients: recipients,
		Notifier:   notifier,
		Now:        time.Now,
	}
}

func (j *OpeningAlertJob) Name() string {
	return "opening-alerts"
}

func (j *OpeningAlertJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil {
		logrus.WithField("component", "OpeningAlertJob").WithError(err).Error("Failed to run opening alert job")
	}
}

// RunOnce queues today's alerts and returns how many were accepted.
func (j *OpeningAlertJob) RunOnce(ctx context.Context) (int, error) {
	logger := logrus.WithField("component", "OpeningAlertJob")

	opening, err := j.Catalog.OpeningOn(ctx, j.Now())
	if err != nil {
		return 0, err
	}
	if len(opening) == 0 {
		logger.Debug("No IPOs open today")
		return 0, nil
	}

	recipients, err := j.Recipients.ListRecipients(ctx)
	if err != nil {
		return 0, err
	}

	queued, dropped := 0, 0
	for i := range opening {
		ipo := &opening[i]
		for _, recipient := range recipients {
			if err := ctx.Err(); err != nil {
				return queued, err
			}
			task := services.NewNotificationTask(models.KindIPOOpening, recipient, ipo, nil)
			if j.Notifier.Notify(task) {
				queued++
			} else {
				dropped++
			}
		}
		logger.WithFields(logrus.Fields{
			"ipo_id":     ipo.ID,
			"ipo_name":   ipo.Name,
			"recipients": len(recipients),
		}).Info("Queued opening alerts")
	}

	logger.WithFields(logrus.Fields{
		"ipos":    len(opening),
		"queued":  queued,
		"dropped": dropped,
	}).Info("Opening alert job completed")
	return queued, nil
}
