package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextCarriesLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))
	fallback := Nop()

	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx, fallback))

	FromContext(ctx, fallback).Info("hello", zap.Int("n", 1))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
}

func TestFromContextFallback(t *testing.T) {
	fallback := Nop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))
	assert.Same(t, fallback, FromContext(WithContext(context.Background(), nil), fallback))
}

func TestNewWithLevel(t *testing.T) {
	l, err := NewWithLevel("warn", false)
	require.NoError(t, err)
	assert.False(t, l.Zap().Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Zap().Core().Enabled(zap.WarnLevel))

	_, err = NewWithLevel("loud", true)
	assert.Error(t, err)
}
