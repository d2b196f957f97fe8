package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobPending, JobDownloading, true},
		{JobDownloading, JobProcessing, true},
		{JobProcessing, JobNormalizing, true},
		{JobNormalizing, JobMoving, true},
		{JobMoving, JobCompleted, true},
		{JobMoving, JobMoving, true},
		{JobNormalizing, JobDownloading, false},
		{JobPending, JobFailed, true},
		{JobMoving, JobFailed, true},
		{JobCompleted, JobFailed, false},
		{JobFailed, JobPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	for _, s := range []JobStatus{JobPending, JobDownloading, JobProcessing, JobNormalizing, JobMoving} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !JobCompleted.Terminal() || !JobFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
	if JobFailed.Rank() != -1 {
		t.Errorf("failed rank = %d", JobFailed.Rank())
	}
}

func TestJobFinishedAtOnlyWhenTerminal(t *testing.T) {
	job := Job{ID: "j1", Status: JobDownloading, CreatedAt: time.Now()}
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "finished_at") {
		t.Errorf("active job carries finished_at: %s", data)
	}

	end := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job.Status = JobCompleted
	job.FinishedAt = &end
	data, err = json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"finished_at":"2024-05-01T12:00:00Z"`) {
		t.Errorf("finished job json = %s", data)
	}

	if !job.FinishedBefore(end.Add(time.Second)) || job.FinishedBefore(end) {
		t.Error("FinishedBefore compares against the end time")
	}
	if (Job{}).FinishedBefore(end) {
		t.Error("unfinished job reported as finished")
	}
	if rec := NewJobRecord(job); !rec.FinishedAt.Equal(end) {
		t.Errorf("record finished_at = %v", rec.FinishedAt)
	}
}
