package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_HappyPath(t *testing.T) {
	path := []Status{
		StatusPending,
		StatusUploading,
		StatusUploaded,
		StatusAligned,
		StatusProcessing,
		StatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		assert.True(t, CanTransition(path[i], path[i+1]),
			"%s -> %s should be allowed", path[i], path[i+1])
	}
}

func TestCanTransition_CancelResetsProcessing(t *testing.T) {
	// The only backward edge: cancelling an in-flight alignment.
	assert.True(t, CanTransition(StatusProcessing, StatusUploaded))
	assert.False(t, CanTransition(StatusProcessing, StatusAligned))
	assert.False(t, CanTransition(StatusCompleted, StatusUploaded))
}

func TestCanTransition_NoBackwardOrSkippedEdges(t *testing.T) {
	assert.False(t, CanTransition(StatusUploaded, StatusUploading))
	assert.False(t, CanTransition(StatusPending, StatusAligned))
	assert.False(t, CanTransition(StatusUploading, StatusAligned))
}

func TestCanTransition_Expiry(t *testing.T) {
	assert.True(t, CanTransition(StatusUploaded, StatusExpired))
	assert.True(t, CanTransition(StatusAligned, StatusExpired))
	assert.False(t, CanTransition(StatusProcessing, StatusExpired))
	assert.False(t, CanTransition(StatusCompleted, StatusExpired))
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusExpired} {
		assert.True(t, IsTerminal(s), "%s should be terminal", s)
	}
	for _, s := range []Status{StatusPending, StatusUploading, StatusUploaded, StatusAligned, StatusProcessing} {
		assert.False(t, IsTerminal(s), "%s should not be terminal", s)
	}
}
