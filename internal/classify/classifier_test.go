package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-chat/internal/domain"
)

func TestHeuristicNegative(t *testing.T) {
	result, err := Heuristic(context.Background(), "This is terrible, I hate this product")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNegative, result.Label)
	assert.Equal(t, 0.8, result.Score)
}

func TestHeuristicPositive(t *testing.T) {
	result, err := Heuristic(context.Background(), "Thanks, this works great!")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentPositive, result.Label)
	assert.Equal(t, 0.8, result.Score)
}

func TestHeuristicNeutral(t *testing.T) {
	result, err := Heuristic(context.Background(), "My order number is 12345")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNeutral, result.Label)
	assert.Equal(t, 0.5, result.Score)
}

func TestHeuristicTieIsNeutral(t *testing.T) {
	result, err := Heuristic(context.Background(), "great but terrible")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNeutral, result.Label)
}

func TestHeuristicBlank(t *testing.T) {
	result, err := Heuristic(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNeutral, result.Label)
}

func TestHeuristicCaseInsensitive(t *testing.T) {
	result, err := Heuristic(context.Background(), "AWFUL experience")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentNegative, result.Label)
}

func TestSmartRepliesMatchTone(t *testing.T) {
	negative := SmartReplies("this is awful")
	require.Len(t, negative, 3)
	assert.Contains(t, negative[0], "sorry")

	positive := SmartReplies("thanks, all good now")
	require.Len(t, positive, 3)
	assert.Contains(t, positive[0], "Thank you")

	neutral := SmartReplies("where is my order")
	require.Len(t, neutral, 3)

	assert.Empty(t, SmartReplies("  "))
}

func TestAdapterPassesThrough(t *testing.T) {
	adapter := NewAdapter(Heuristic, time.Second)
	result, err := adapter.Classify(context.Background(), "awesome")
	require.NoError(t, err)
	assert.Equal(t, domain.SentimentPositive, result.Label)
}

func TestAdapterWrapsFailure(t *testing.T) {
	boom := errors.New("model offline")
	adapter := NewAdapter(func(context.Context, string) (Result, error) {
		return Result{}, boom
	}, time.Second)

	_, err := adapter.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestAdapterTimesOut(t *testing.T) {
	adapter := NewAdapter(func(ctx context.Context, _ string) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}, 10*time.Millisecond)

	start := time.Now()
	_, err := adapter.Classify(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}
