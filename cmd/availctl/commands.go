package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rentalmarket/booking-backend/internal/config"
	"github.com/rentalmarket/booking-backend/internal/database"
	"github.com/rentalmarket/booking-backend/internal/models"
	"github.com/rentalmarket/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "availctl",
		Short:         "Inspect availability slots, cancellation transitions and the audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newStartTimesCmd())
	root.AddCommand(newEndTimeCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newAuditCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "availctl %s (built=%s)\n", version, buildTime)
		},
	}
}

func newStartTimesCmd() *cobra.Command {
	var (
		duration int
		ranges   []string
		exclude  int
		window   string
	)

	c := &cobra.Command{
		Use:   "start-times",
		Short: "List the start times still free for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, availability, err := loadSlotFilter()
			if err != nil {
				return err
			}
			if !availability.AllowsDuration(duration) {
				return fmt.Errorf("duration %d is not one of the offered durations %v", duration, availability.Durations)
			}

			if window != "" {
				w, err := parseRangeFlag(window)
				if err != nil {
					return fmt.Errorf("invalid --window: %w", err)
				}
				if filter, err = filter.WithinWindow(w); err != nil {
					return err
				}
			}

			existing := make([]models.TimeRange, 0, len(ranges))
			for _, raw := range ranges {
				r, err := parseRangeFlag(raw)
				if err != nil {
					return fmt.Errorf("invalid --range: %w", err)
				}
				existing = append(existing, r)
			}

			return writeJSON(cmd.OutOrStdout(), models.StartTimesResponse{
				StartTimes: filter.AvailableStartTimes(existing, duration, exclude),
				CanAdd:     filter.CanAddRange(existing, duration),
			})
		},
	}

	c.Flags().IntVar(&duration, "duration", 1, "Range duration in hours")
	c.Flags().StringArrayVar(&ranges, "range", nil, "Existing range HH:MM-HH:MM (repeatable)")
	c.Flags().IntVar(&exclude, "exclude", -1, "Index of the range being edited")
	c.Flags().StringVar(&window, "window", "", "Restrict candidates to HH:MM-HH:MM")
	return c
}

func newEndTimeCmd() *cobra.Command {
	var (
		duration int
		start    string
	)

	c := &cobra.Command{
		Use:   "end-time",
		Short: "Print the end time for a start time and duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, _, err := loadSlotFilter()
			if err != nil {
				return err
			}
			endTime, err := filter.EndTimeFor(duration, start)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), models.EndTimeResponse{
				StartTime: start,
				EndTime:   endTime,
				Duration:  duration,
			})
		},
	}

	c.Flags().IntVar(&duration, "duration", 1, "Range duration in hours")
	c.Flags().StringVar(&start, "start", "", "Start time HH:MM")
	_ = c.MarkFlagRequired("start")
	return c
}

func newResolveCmd() *cobra.Command {
	var (
		lastTransition string
		createdAt      string
		now            string
		windowDays     int
	)

	c := &cobra.Command{
		Use:   "resolve",
		Short: "Show which cancellation transition a customer cancel would take",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := time.Parse(time.RFC3339, createdAt)
			if err != nil {
				return fmt.Errorf("invalid --created-at (want RFC3339): %w", err)
			}

			at := time.Now()
			if now != "" {
				if at, err = time.Parse(time.RFC3339, now); err != nil {
					return fmt.Errorf("invalid --now (want RFC3339): %w", err)
				}
			}

			resolverConfig := services.ResolverConfig{RefundWindowDays: windowDays}
			if windowDays < 0 {
				resolverConfig.RefundWindowDays = config.LoadUnvalidated().Booking.RefundWindowDays
			}
			resolver := services.NewBookingTransitionResolver(resolverConfig)
			next := resolver.Resolve(models.Transition(lastTransition), created, at)

			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"lastTransition":   lastTransition,
				"transition":       next,
				"withRefund":       next.WithRefund(),
				"refundWindowDays": resolverConfig.RefundWindowDays,
			})
		},
	}

	c.Flags().StringVar(&lastTransition, "last-transition", "", "Last transition of the transaction")
	c.Flags().StringVar(&createdAt, "created-at", "", "Transaction creation time (RFC3339)")
	c.Flags().StringVar(&now, "now", "", "Evaluation time (RFC3339, default current time)")
	c.Flags().IntVar(&windowDays, "window-days", -1, "Refund window in days (default from BOOKING_REFUND_WINDOW_DAYS)")
	_ = c.MarkFlagRequired("last-transition")
	_ = c.MarkFlagRequired("created-at")
	return c
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read or prune the audit trail",
	}
	cmd.AddCommand(newAuditShowCmd())
	cmd.AddCommand(newAuditCountCmd())
	cmd.AddCommand(newAuditCleanupCmd())
	return cmd
}

func newAuditShowCmd() *cobra.Command {
	var (
		entity string
		limit  int
	)

	c := &cobra.Command{
		Use:   "show",
		Short: "Show audit events for a transaction or customer id",
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := uuid.Parse(entity)
			if err != nil {
				return fmt.Errorf("invalid --entity: %w", err)
			}

			db, err := openAuditDB()
			if err != nil {
				return err
			}
			defer db.Close()

			logs, err := database.NewAuditLogRepository(db).GetByEntityID(entityID, limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), logs)
		},
	}

	c.Flags().StringVar(&entity, "entity", "", "Transaction or customer id")
	c.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")
	_ = c.MarkFlagRequired("entity")
	return c
}

func newAuditCountCmd() *cobra.Command {
	var (
		action    string
		sinceDays int
	)

	c := &cobra.Command{
		Use:   "count",
		Short: "Count audit events of one action over the last days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !knownAuditAction(action) {
				return fmt.Errorf("unknown --action %q", action)
			}
			if sinceDays < 1 {
				return fmt.Errorf("--since-days must be at least 1")
			}

			db, err := openAuditDB()
			if err != nil {
				return err
			}
			defer db.Close()

			since := time.Now().Add(-time.Duration(sinceDays) * 24 * time.Hour)
			count, err := database.NewAuditLogRepository(db).CountByActionSince(action, since)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"action":    action,
				"sinceDays": sinceDays,
				"count":     count,
			})
		},
	}

	c.Flags().StringVar(&action, "action", services.AuditActionTransitionResolved, "Audit action to count")
	c.Flags().IntVar(&sinceDays, "since-days", 7, "Look back this many days")
	return c
}

func newAuditCleanupCmd() *cobra.Command {
	var retentionDays int

	c := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete audit events past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openAuditDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if retentionDays <= 0 {
				retentionDays = config.LoadUnvalidated().Security.AuditRetentionDays
			}

			logger := logrus.New()
			logger.SetOutput(cmd.ErrOrStderr())

			cronConfig := services.DefaultCronConfig()
			cronConfig.AuditRetention = time.Duration(retentionDays) * 24 * time.Hour
			deleted, err := services.NewCronService(services.NewAuditService(db, logger), cronConfig, logger).RunAuditCleanupNow()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audit events older than %d days\n", deleted, retentionDays)
			return nil
		},
	}

	c.Flags().IntVar(&retentionDays, "retention-days", 0, "Retention in days (default from AUDIT_RETENTION_DAYS)")
	return c
}

func loadSlotFilter() (*services.TimeRangeSlotFilter, config.AvailabilityConfig, error) {
	cfg := config.LoadUnvalidated()
	if err := cfg.Availability.Validate(); err != nil {
		return nil, cfg.Availability, err
	}
	filter, err := services.NewTimeRangeSlotFilter(cfg.Availability)
	return filter, cfg.Availability, err
}

func knownAuditAction(action string) bool {
	switch action {
	case services.AuditActionTransitionResolved, services.AuditActionFirstBookingSet, services.AuditActionFirstBookingClear:
		return true
	}
	return false
}

func openAuditDB() (database.DB, error) {
	cfg := config.LoadUnvalidated()
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for audit commands")
	}
	return database.NewConnection(cfg.Database)
}

// parseRangeFlag parses "HH:MM-HH:MM"
func parseRangeFlag(raw string) (models.TimeRange, error) {
	start, end, ok := strings.Cut(raw, "-")
	if !ok {
		return models.TimeRange{}, fmt.Errorf("%q is not HH:MM-HH:MM", raw)
	}
	r := models.TimeRange{StartTime: strings.TrimSpace(start), EndTime: strings.TrimSpace(end)}
	for _, label := range []string{r.StartTime, r.EndTime} {
		if _, err := models.ParseClockLabel(label); err != nil {
			return models.TimeRange{}, err
		}
	}
	return r, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
