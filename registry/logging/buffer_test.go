package logging_test

import (
	"fmt"
	"testing"

	"github.com/plgd-dev/nmos-registry/pkg/log"
	"github.com/plgd-dev/nmos-registry/registry/logging"
	"github.com/plgd-dev/nmos-registry/registry/resource"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(capacity int, level zapcore.Level) (*zap.SugaredLogger, *logging.Buffer) {
	b := logging.NewBuffer(logging.Config{Capacity: capacity}, level)
	return zap.New(b.Core(), zap.AddCaller()).Sugar(), b
}

func TestBufferKeepsNewestEvents(t *testing.T) {
	logger, b := newLogger(3, zapcore.DebugLevel)
	for i := 1; i <= 5; i++ {
		logger.Infof("event %v", i)
	}
	events := b.Events()
	require.Len(t, events, 3)
	require.Equal(t, "event 5", events[0].Message)
	require.Equal(t, "5", events[0].ID)
	require.Equal(t, "event 3", events[2].Message)
	require.NotEmpty(t, events[0].SourceLocation)
	require.Equal(t, log.SeverityInfo, events[0].Level)
	require.Equal(t, "info", events[0].LevelName)

	_, err := b.Get("1")
	require.ErrorIs(t, err, resource.ErrNotFound)
	e, err := b.Get("4")
	require.NoError(t, err)
	require.Equal(t, "event 4", e.Message)
}

func TestBufferRespectsLevel(t *testing.T) {
	logger, b := newLogger(8, zapcore.WarnLevel)
	logger.Info("dropped")
	logger.Warn("kept")
	events := b.Events()
	require.Len(t, events, 1)
	require.Equal(t, "kept", events[0].Message)
	require.Equal(t, log.SeverityWarning, events[0].Level)
}

func TestBufferRecordsFields(t *testing.T) {
	logger, b := newLogger(8, zapcore.DebugLevel)
	logger.With("api", "query").Debugw("request", "status", 404)
	events := b.Events()
	require.Len(t, events, 1)
	require.Equal(t, "query", events[0].Fields["api"])
	require.EqualValues(t, 404, events[0].Fields["status"])
	require.Equal(t, log.SeverityMoreInfo, events[0].Level)
}

func TestBufferSelect(t *testing.T) {
	logger, b := newLogger(16, zapcore.DebugLevel)
	for i := 1; i <= 4; i++ {
		logger.Infof("registered sender s%v", i)
	}
	logger.Errorf("cannot write response")

	tests := []struct {
		name    string
		params  map[string]string
		want    []string
		wantErr bool
	}{
		{name: "all", params: map[string]string{}, want: []string{"5", "4", "3", "2", "1"}},
		{name: "level", params: map[string]string{"level": "20"}, want: []string{"5"}},
		{name: "message wildcard", params: map[string]string{"message": "*SENDER s*"}, want: []string{"4", "3", "2", "1"}},
		{name: "since", params: map[string]string{"paging.since": "3"}, want: []string{"5", "4"}},
		{name: "limit", params: map[string]string{"paging.limit": "2"}, want: []string{"5", "4"}},
		{name: "absent attribute", params: map[string]string{"fields.api": "*"}, want: nil},
		{name: "invalid limit", params: map[string]string{"paging.limit": "x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, _, err := b.Select(tt.params)
			if tt.wantErr {
				require.ErrorIs(t, err, resource.ErrInvalidBody)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			require.Equal(t, tt.want, ids, fmt.Sprintf("%v", tt.params))
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := logging.DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Capacity = 0
	require.Error(t, cfg.Validate())
}
