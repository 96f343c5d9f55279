package observability

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/crm-access/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	app := config.AppConfig{Name: "crm-access", Version: "test", Env: "production"}
	logger, err := NewLogger(config.LoggerConfig{Level: "warn"}, app)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) || !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatal("expected warn level")
	}

	app.Env = "development"
	if _, err := NewLogger(config.LoggerConfig{Level: "debug"}, app); err != nil {
		t.Fatalf("development logger: %v", err)
	}
	if _, err := NewLogger(config.LoggerConfig{Level: "chatty"}, app); err == nil {
		t.Fatal("expected invalid level error")
	}
}
