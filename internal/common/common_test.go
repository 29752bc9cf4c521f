package common

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 0.7, cfg.Parser.ReviewThreshold)
	assert.Equal(t, "USD", cfg.Parser.DefaultCurrency)
	assert.Equal(t, "45s", cfg.OCR.CommandTimeout.String())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_URL", "postgres://localhost/receipts")
	t.Setenv("REVIEW_THRESHOLD", "0.55")
	t.Setenv("WORKERS", "8")
	t.Setenv("PROCESS_TIMEOUT", "10s")
	t.Setenv("DEFAULT_CURRENCY", "CAD")

	cfg := LoadConfig()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 0.55, cfg.Parser.ReviewThreshold)
	assert.Equal(t, 8, cfg.Server.Workers)
	assert.Equal(t, "10s", cfg.Server.ProcessTimeout.String())
	assert.Equal(t, "CAD", cfg.Parser.DefaultCurrency)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"url", func(c *Config) { c.Database.URL = "" }},
		{"workers", func(c *Config) { c.Server.Workers = 0 }},
		{"threshold", func(c *Config) { c.Parser.ReviewThreshold = 1.5 }},
		{"currency", func(c *Config) { c.Parser.DefaultCurrency = "usd" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "CONFIG_ERROR", appErr.Code)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("RECEIPT_PARSER_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("RECEIPT_PARSER_TEST_KEY", "")
	os.Unsetenv("RECEIPT_PARSER_TEST_KEY")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("RECEIPT_PARSER_TEST_KEY"))
	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func TestToGRPCError(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{WrapError(ErrNotFound, "get receipt"), codes.NotFound},
		{NewAppError("BAD", "bad", ErrValidation), codes.InvalidArgument},
		{WrapError(ErrUnsupported, "extract"), codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(ToGRPCError(tt.err)), tt.err.Error())
	}
	assert.NoError(t, ToGRPCError(nil))
}

func TestValidator(t *testing.T) {
	vendor := "Starbucks"
	var missing *string
	amount := decimal.RequireFromString("-1")

	v := NewValidator().
		Optional("vendor", &vendor, Required, MaxLength(5)).
		Optional("currency", missing, CurrencyCode).
		Field("date", "2024-02-30", ISODate).
		Optional("amount", &amount, NonNegative).
		Field("id", "not-a-uuid", UUID)

	require.True(t, v.HasErrors())
	fields := make([]string, 0, len(v.Errors()))
	for _, e := range v.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"vendor", "date", "amount", "id"}, fields)
	assert.ErrorIs(t, v.Err(), ErrValidation)
	assert.Equal(t, codes.InvalidArgument, status.Code(ValidateAndReturnError(v)))

	assert.NoError(t, NewValidator().Field("currency", "CAD", CurrencyCode).Err())
}

func TestRequestID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	require.NotEmpty(t, id)
	assert.Equal(t, id, RequestIDFromContext(ctx))

	ctx2, id2 := EnsureRequestID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, ctx, ctx2)
	assert.NotNil(t, LoggerFromContext(ctx, nil))
}
