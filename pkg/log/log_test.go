// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromZapCarriesFields(t *testing.T) {
	require := require.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With(String("component", "ledger"))

	logger.Warn("write failed", Error(errors.New("disk full")), Int("attempt", 1))

	entries := logs.All()
	require.Len(entries, 1)
	require.Equal("write failed", entries[0].Message)
	require.Equal(zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	require.Equal("ledger", fields["component"])
	require.Equal("disk full", fields["error"])
	require.EqualValues(1, fields["attempt"])
}

func TestNoOpLogger(t *testing.T) {
	logger := NoOp()
	logger.Info("ignored", String("k", "v"))
	require.Same(t, logger, logger.With(String("k", "v")))
	require.NoError(t, logger.Sync())
}

func TestNewWithLevelUnknownFallsBackToInfo(t *testing.T) {
	logger := NewWithLevel("chatty")
	require.IsType(t, &luxLogger{}, logger)
}

// captureStdout runs f with os.Stdout redirected and returns what was written.
// Loggers must be created inside f so their console core binds to the pipe.
func captureStdout(t *testing.T, f func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)

	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	f()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestLuxLoggerCarriesFields(t *testing.T) {
	require := require.New(t)

	out := captureStdout(t, func() {
		logger := NewWithLevel("debug").With(String("component", "ledger"))
		logger.Warn("write failed", Int("attempt", 2))
	})

	require.Contains(out, "write failed")
	require.Contains(out, "ledger")
	require.Contains(out, "attempt")
}

func TestLuxLoggerHonorsLevel(t *testing.T) {
	require := require.New(t)

	out := captureStdout(t, func() {
		logger := NewWithLevel("warn")
		logger.Info("below threshold")
		logger.Error("above threshold")
	})

	require.NotContains(out, "below threshold")
	require.Contains(out, "above threshold")
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	require := require.New(t)

	parent := &luxLogger{}
	child := parent.With(String("a", "1")).(*luxLogger)
	grandchild := child.With(String("b", "2")).(*luxLogger)

	require.Empty(parent.fields)
	require.Len(child.fields, 1)
	require.Len(grandchild.fields, 2)
}
