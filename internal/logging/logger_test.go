package logging

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/gridwalker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.OTEL = false

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, cfg, logger.config)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad format", func(c *Config) { c.Format = "text" }, "format must be"},
		{"no outputs", func(c *Config) { c.Output.Stdout = false }, "at least one output"},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }, "sampling tick"},
		{"negative caller skip", func(c *Config) { c.Caller.Skip = -1 }, "caller skip"},
		{"empty field value", func(c *Config) { c.Fields["env"] = "" }, "empty value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(config.LoggingConfig{Level: "debug", Format: "console", Sampling: false})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)

	cfg, err = FromAppConfig(config.LoggingConfig{Level: "trace"})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	_, err = FromAppConfig(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithInvocationID(ctx, "inv-1")
	tl.Info(ctx, "step applied", zap.String("result", "1 2 N"))

	tl.AssertLogged(t, zapcore.InfoLevel, "step applied")
	tl.AssertField(t, "step applied", "request.id", "req-1")
	tl.AssertField(t, "step applied", "invocation.id", "inv-1")
	tl.AssertField(t, "step applied", "result", "1 2 N")
}

func TestLogger_EmptyIDsIgnored(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	ctx = WithInvocationID(ctx, "")
	assert.Empty(t, ContextFields(ctx))
}

func TestLogger_Levels(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Trace(ctx, "trace message")
	tl.Debug(ctx, "debug message")
	tl.Warn(ctx, "warn message")
	tl.Error(ctx, "error message")

	tl.AssertLogged(t, TraceLevel, "trace message")
	tl.AssertLogged(t, zapcore.DebugLevel, "debug message")
	tl.AssertLogged(t, zapcore.WarnLevel, "warn message")
	tl.AssertLogged(t, zapcore.ErrorLevel, "error message")
	tl.AssertNotLogged(t, zapcore.InfoLevel, "message")

	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestLogger_WithAndNamed(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := Wrap(zap.New(core))

	logger.Named("dispatch").With(zap.String("kind", "m")).Info(context.Background(), "child log")

	logs := observed.All()
	require.Len(t, logs, 1)
	assert.Equal(t, "dispatch", logs[0].LoggerName)
	assert.Equal(t, "kind", logs[0].Context[0].Key)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("verbose")
	assert.Error(t, err)
}

func TestNewSampledCore(t *testing.T) {
	t.Run("disabled returns core unchanged", func(t *testing.T) {
		core, _ := observer.New(zapcore.InfoLevel)
		assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
	})

	t.Run("errors are never sampled", func(t *testing.T) {
		core, observed := observer.New(zapcore.InfoLevel)
		logger := Wrap(zap.New(newSampledCore(core, SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Minute),
			Levels:  DefaultLevelSamplingConfig(),
		})))

		for i := 0; i < 150; i++ {
			logger.Error(context.Background(), "error message")
		}
		assert.Len(t, observed.FilterMessage("error message").All(), 150)
	})

	t.Run("info is sampled after initial burst", func(t *testing.T) {
		core, observed := observer.New(zapcore.InfoLevel)
		logger := Wrap(zap.New(newSampledCore(core, SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Minute),
			Levels: map[zapcore.Level]LevelSamplingConfig{
				zapcore.InfoLevel: {Initial: 5, Thereafter: 0},
			},
		})))

		for i := 0; i < 20; i++ {
			logger.Info(context.Background(), "info message")
		}
		assert.Len(t, observed.FilterMessage("info message").All(), 5)
	})

	t.Run("levels without a rate pass through", func(t *testing.T) {
		core, observed := observer.New(zapcore.InfoLevel)
		logger := Wrap(zap.New(newSampledCore(core, SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Minute),
			Levels:  map[zapcore.Level]LevelSamplingConfig{},
		})))

		for i := 0; i < 20; i++ {
			logger.Warn(context.Background(), "warn message")
		}
		assert.Len(t, observed.FilterMessage("warn message").All(), 20)
	})
}

func TestNewDualCore(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.OTEL = true

	core, err := newDualCore(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, core)

	cfg.Output.Stdout = false
	_, err = newDualCore(cfg, nil)
	assert.Error(t, err)
}

func TestNewLogger_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Output.Writer = &buf

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	logger.Info(context.Background(), "to buffer", zap.String("k", "v"))

	assert.Contains(t, buf.String(), `"msg":"to buffer"`)
	assert.Contains(t, buf.String(), `"k":"v"`)
}
