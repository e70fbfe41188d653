package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// AuditCleaner deletes audit records older than a cutoff
type AuditCleaner interface {
	CleanupOldAuditLogs(olderThan time.Duration) (int64, error)
}

// CronConfig holds the schedules of the background jobs
type CronConfig struct {
	AuditCleanupSchedule string        // second minute hour day month weekday
	AuditRetention       time.Duration // Audit logs older than this are deleted (default 90 days)
}

// DefaultCronConfig returns default configuration
func DefaultCronConfig() CronConfig {
	return CronConfig{
		// "0 0 3 * * *" = At 3:00 AM every day
		AuditCleanupSchedule: "0 0 3 * * *",
		AuditRetention:       90 * 24 * time.Hour,
	}
}

// CronService manages scheduled background jobs
type CronService struct {
	cron    *cron.Cron
	cleaner AuditCleaner
	config  CronConfig
	logger  *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(cleaner AuditCleaner, config CronConfig, logger *logrus.Logger) *CronService {
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:    c,
		cleaner: cleaner,
		config:  config,
		logger:  logger,
	}
}

// Start schedules all jobs and starts the scheduler
func (s *CronService) Start() error {
	s.logger.Info("Starting cron service...")

	_, err := s.cron.AddFunc(s.config.AuditCleanupSchedule, s.cleanupAuditLogsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule audit cleanup job: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"schedule":       s.config.AuditCleanupSchedule,
		"retention_days": int(s.config.AuditRetention.Hours() / 24),
	}).Info("Scheduled: Cleanup old audit logs")

	s.cron.Start()
	s.logger.Info("Cron service started successfully")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	s.logger.Info("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

// cleanupAuditLogsJob removes audit logs past the retention period
func (s *CronService) cleanupAuditLogsJob() {
	s.logger.Info("[CRON] Starting audit log cleanup job...")
	_, _ = s.cleanupAuditLogs("[CRON]")
}

// RunAuditCleanupNow runs the audit cleanup job immediately and reports how many
// records it deleted
func (s *CronService) RunAuditCleanupNow() (int64, error) {
	s.logger.Info("[MANUAL] Running audit log cleanup now...")
	return s.cleanupAuditLogs("[MANUAL]")
}

func (s *CronService) cleanupAuditLogs(tag string) (int64, error) {
	startTime := time.Now()

	deleted, err := s.cleaner.CleanupOldAuditLogs(s.config.AuditRetention)
	if err != nil {
		s.logger.WithError(err).Error(tag + " Failed to cleanup old audit logs")
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"deleted":     deleted,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info(tag + " Cleaned up old audit logs")
	return deleted, nil
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
