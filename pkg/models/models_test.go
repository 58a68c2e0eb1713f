package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiranshivaraju/sceneswitch/pkg/models"
)

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, models.JobStatusSubmitted.Terminal())
	assert.False(t, models.JobStatusPolling.Terminal())
	assert.True(t, models.JobStatusCompleted.Terminal())
	assert.True(t, models.JobStatusFailed.Terminal())
	assert.True(t, models.JobStatusTimedOut.Terminal())
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to models.JobStatus
		want     bool
	}{
		{"", models.JobStatusSubmitted, true},
		{"", models.JobStatusFailed, true},
		{"", models.JobStatusPolling, false},
		{models.JobStatusSubmitted, models.JobStatusPolling, true},
		{models.JobStatusSubmitted, models.JobStatusTimedOut, false},
		{models.JobStatusPolling, models.JobStatusPolling, true},
		{models.JobStatusPolling, models.JobStatusTimedOut, true},
		{models.JobStatusPolling, models.JobStatusSubmitted, false},
		{models.JobStatusCompleted, models.JobStatusFailed, false},
		{models.JobStatusTimedOut, models.JobStatusPolling, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestBatchStatus_Finished(t *testing.T) {
	assert.False(t, models.BatchStatusPending.Finished())
	assert.False(t, models.BatchStatusRunning.Finished())
	for _, s := range []models.BatchStatus{
		models.BatchStatusSuccess,
		models.BatchStatusPartialSuccess,
		models.BatchStatusFailed,
		models.BatchStatusCancelled,
	} {
		assert.True(t, s.Finished(), s)
	}
}

func TestBatchRun_PairCount(t *testing.T) {
	run := &models.BatchRun{
		Assets:  make([]models.MediaAsset, 3),
		Effects: []string{"retro", "anime"},
	}
	assert.Equal(t, 6, run.PairCount())
}
