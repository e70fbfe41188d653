package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMarketplaceEnv(t *testing.T) {
	t.Setenv("MARKETPLACE_CLIENT_ID", "client-id")
	t.Setenv("MARKETPLACE_CLIENT_SECRET", "client-secret")
	t.Setenv("MARKETPLACE_INTEGRATION_CLIENT_ID", "integration-id")
	t.Setenv("MARKETPLACE_INTEGRATION_CLIENT_SECRET", "integration-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setMarketplaceEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "00:00", cfg.Availability.CandidateStart)
	assert.Equal(t, "23:00", cfg.Availability.CandidateEnd)
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.Availability.Durations)
	assert.Equal(t, "Etc/UTC", cfg.Availability.Timezone)
	assert.Equal(t, 2, cfg.Booking.RefundWindowDays)
	assert.False(t, cfg.Security.EnableAuditLog)
}

func TestLoad_Overrides(t *testing.T) {
	setMarketplaceEnv(t)
	t.Setenv("AVAILABILITY_DURATIONS", "2, 4,8")
	t.Setenv("AVAILABILITY_CANDIDATE_START", "06:00")
	t.Setenv("BOOKING_REFUND_WINDOW_DAYS", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{2, 4, 8}, cfg.Availability.Durations)
	assert.Equal(t, "06:00", cfg.Availability.CandidateStart)
	assert.Equal(t, 3, cfg.Booking.RefundWindowDays)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_MissingMarketplaceCredentials(t *testing.T) {
	t.Setenv("MARKETPLACE_CLIENT_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKETPLACE_CLIENT_ID")
}

func TestLoadUnvalidated_SkipsCredentialCheck(t *testing.T) {
	t.Setenv("MARKETPLACE_CLIENT_ID", "")
	t.Setenv("AVAILABILITY_CANDIDATE_END", "20:00")

	cfg := LoadUnvalidated()
	assert.Equal(t, "20:00", cfg.Availability.CandidateEnd)
	assert.NoError(t, cfg.Availability.Validate())
	assert.Error(t, cfg.Validate())
}

func TestLoad_AuditLogRequiresDatabase(t *testing.T) {
	setMarketplaceEnv(t)
	t.Setenv("ENABLE_AUDIT_LOGGING", "true")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestAvailabilityConfig_Validate(t *testing.T) {
	valid := AvailabilityConfig{
		CandidateStart:   "00:00",
		CandidateEnd:     "23:00",
		Durations:        []int{1, 2},
		DefaultStartTime: "00:00",
		DefaultEndTime:   "23:00",
		Timezone:         "Europe/Helsinki",
	}

	tests := []struct {
		name    string
		mutate  func(c *AvailabilityConfig)
		wantErr string
	}{
		{"valid", func(c *AvailabilityConfig) {}, ""},
		{"zero duration", func(c *AvailabilityConfig) { c.Durations = []int{0} }, "invalid duration 0"},
		{"negative duration", func(c *AvailabilityConfig) { c.Durations = []int{2, -1} }, "invalid duration -1"},
		{"no durations", func(c *AvailabilityConfig) { c.Durations = nil }, "at least one duration"},
		{"half hour label", func(c *AvailabilityConfig) { c.CandidateStart = "09:30" }, "invalid hour label"},
		{"hour 24", func(c *AvailabilityConfig) { c.CandidateEnd = "24:00" }, "invalid hour label"},
		{"reversed universe", func(c *AvailabilityConfig) { c.CandidateStart = "10:00"; c.CandidateEnd = "09:00" }, "must not be after"},
		{"empty default range", func(c *AvailabilityConfig) { c.DefaultEndTime = "00:00" }, "must be before"},
		{"unknown timezone", func(c *AvailabilityConfig) { c.Timezone = "Mars/Olympus" }, "invalid AVAILABILITY_TIMEZONE"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			cfg.Durations = append([]int(nil), valid.Durations...)
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestAvailabilityConfig_AllowsDuration(t *testing.T) {
	cfg := AvailabilityConfig{Durations: []int{1, 4}}

	assert.True(t, cfg.AllowsDuration(4))
	assert.False(t, cfg.AllowsDuration(3))
}
