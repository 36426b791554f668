package jobs

import (
	"github.com/fenilmodi00/ipo-tracker/services"
	"github.com/sirupsen/logrus"
)

type CacheCleanupJob struct {
	CacheService *services.CacheService
}

func NewCacheCleanupJob(cacheService *services.CacheService) *CacheCleanupJob {
	return &CacheCleanupJob{CacheService: cacheService}
}

func (j *CacheCleanupJob) Name() string {
	return "cache-cleanup"
}

func (j *CacheCleanupJob) Run() {
	removed := j.CacheService.CleanupExpired()
	logrus.WithFields(logrus.Fields{
		"component": "CacheCleanupJob",
		"removed":   removed,
		"remaining": j.CacheService.Size(),
	}).Info("Cache Cleanup Job completed")
}
