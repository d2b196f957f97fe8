package model

import "time"

// JobRecord 已结束任务的历史记录 (MySQL, 可选)
type JobRecord struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	URL            string    `gorm:"type:varchar(512);not null" json:"url"`
	Title          string    `gorm:"type:varchar(255)" json:"title"`
	Status         string    `gorm:"type:varchar(16);index" json:"status"`
	Error          string    `gorm:"type:text" json:"error"`
	Filename       string    `gorm:"type:varchar(255)" json:"filename"`
	TargetPlaylist string    `gorm:"type:varchar(32)" json:"target_playlist"`
	CreatedAt      time.Time `json:"created_at"`
	FinishedAt     time.Time `gorm:"index" json:"finished_at"`
}

// TableName 指定表名
func (JobRecord) TableName() string {
	return "download_jobs"
}

// NewJobRecord converts a terminal job into its history row.
func NewJobRecord(j Job) JobRecord {
	var finished time.Time
	if j.FinishedAt != nil {
		finished = *j.FinishedAt
	}
	return JobRecord{
		ID:             j.ID,
		URL:            j.URL,
		Title:          j.Title,
		Status:         string(j.Status),
		Error:          j.Error,
		Filename:       j.Filename,
		TargetPlaylist: j.TargetPlaylist,
		CreatedAt:      j.CreatedAt,
		FinishedAt:     finished,
	}
}
