package model

import "time"

// JobStatus 下载任务状态
type JobStatus string

const (
	JobPending     JobStatus = "pending"
	JobDownloading JobStatus = "downloading"
	JobProcessing  JobStatus = "processing"
	JobNormalizing JobStatus = "normalizing"
	JobMoving      JobStatus = "moving"
	JobCompleted   JobStatus = "completed"
	JobFailed      JobStatus = "failed"
)

var jobStatusRank = map[JobStatus]int{
	JobPending:     0,
	JobDownloading: 1,
	JobProcessing:  2,
	JobNormalizing: 3,
	JobMoving:      4,
	JobCompleted:   5,
}

// Rank returns the position of s in the forward status order.
// Failed has no rank and returns -1.
func (s JobStatus) Rank() int {
	if r, ok := jobStatusRank[s]; ok {
		return r
	}
	return -1
}

// Terminal reports whether the job can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether s -> next is a legal status move.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == JobFailed {
		return true
	}
	return next.Rank() >= s.Rank()
}

// Job 一次 下载 -> 入库 的任务
type Job struct {
	ID             string     `json:"id"`
	URL            string     `json:"url"`
	TargetPlaylist string     `json:"target_playlist,omitempty"`
	Status         JobStatus  `json:"status"`
	Progress       int        `json:"progress"`
	Message        string     `json:"message"`
	Title          string     `json:"title,omitempty"`
	Error          string     `json:"error,omitempty"`
	Filename       string     `json:"filename,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// FinishedBefore reports whether the job ended before t. Unfinished jobs never did.
func (j Job) FinishedBefore(t time.Time) bool {
	return j.FinishedAt != nil && j.FinishedAt.Before(t)
}
