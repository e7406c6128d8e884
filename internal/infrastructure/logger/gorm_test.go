package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFn() (string, int64) { return "SELECT 1", 1 }

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		wantMsg string
	}{
		{"error logged", gormlogger.Warn, 0, errors.New("deadlock"), "SQL error"},
		{"not found ignored", gormlogger.Warn, 0, gormlogger.ErrRecordNotFound, ""},
		{"slow query", gormlogger.Warn, time.Second, nil, "slow SQL"},
		{"fast query hidden at warn", gormlogger.Warn, 0, nil, ""},
		{"fast query at info", gormlogger.Info, 0, nil, "SQL"},
		{"silent", gormlogger.Silent, time.Second, errors.New("x"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gl := NewGormLogger(zap.New(core), tt.level, 100*time.Millisecond)

			gl.Trace(context.Background(), time.Now().Add(-tt.elapsed), sqlFn, tt.err)

			if tt.wantMsg == "" {
				assert.Equal(t, 0, recorded.Len())
				return
			}
			assert.Equal(t, 1, recorded.FilterMessage(tt.wantMsg).Len())
		})
	}
}

func TestGormLogger_LogMode(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), gormlogger.Info, 0)
	other := gl.LogMode(gormlogger.Error).(*GormLogger)

	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, gormlogger.Error, other.level)
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Silent, GormLevel("silent"))
}
