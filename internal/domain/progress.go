package domain

import (
	"context"
	"encoding/json"
)

// ProgressStatus tags a ProgressEvent
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressFinished    ProgressStatus = "finished"
	ProgressError       ProgressStatus = "error"
)

// ProgressEvent is pushed to subscribers as JSON
type ProgressEvent struct {
	TaskID     string         `json:"task_id,omitempty"`
	Status     ProgressStatus `json:"status"`
	Percentage float64        `json:"percentage,omitempty"`
	Speed      float64        `json:"speed,omitempty"` // bytes per second
	ETA        int64          `json:"eta,omitempty"`   // seconds
	Filename   string         `json:"filename,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// NewDownloadingEvent builds an interim progress event
func NewDownloadingEvent(taskID string, percentage, speed float64, eta int64, filename string) ProgressEvent {
	return ProgressEvent{
		TaskID:     taskID,
		Status:     ProgressDownloading,
		Percentage: percentage,
		Speed:      speed,
		ETA:        eta,
		Filename:   filename,
	}
}

// NewFinishedEvent builds the success terminal event
func NewFinishedEvent(taskID, filename string) ProgressEvent {
	return ProgressEvent{TaskID: taskID, Status: ProgressFinished, Filename: filename}
}

// NewErrorEvent builds the failure terminal event
func NewErrorEvent(taskID, message string) ProgressEvent {
	return ProgressEvent{TaskID: taskID, Status: ProgressError, Message: message}
}

// MarshalJSON always writes percentage, speed and eta on downloading events,
// zero included. Terminal events carry only the fields that apply to them.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	type plain ProgressEvent
	if e.Status != ProgressDownloading {
		return json.Marshal(plain(e))
	}
	return json.Marshal(struct {
		TaskID     string         `json:"task_id,omitempty"`
		Status     ProgressStatus `json:"status"`
		Percentage float64        `json:"percentage"`
		Speed      float64        `json:"speed"`
		ETA        int64          `json:"eta"`
		Filename   string         `json:"filename,omitempty"`
	}{
		TaskID:     e.TaskID,
		Status:     e.Status,
		Percentage: e.Percentage,
		Speed:      e.Speed,
		ETA:        e.ETA,
		Filename:   e.Filename,
	})
}

// IsTerminal reports whether the event ends a task's stream
func (e ProgressEvent) IsTerminal() bool {
	return e.Status == ProgressFinished || e.Status == ProgressError
}

// RawProgress is one progress callback from the extraction engine
type RawProgress struct {
	Status             string   `json:"status"`
	DownloadedBytes    float64  `json:"downloaded_bytes"`
	TotalBytes         float64  `json:"total_bytes"`
	TotalBytesEstimate float64  `json:"total_bytes_estimate"`
	Speed              *float64 `json:"speed"`
	ETA                *float64 `json:"eta"`
	Filename           string   `json:"filename"`
}

// Total returns the best known total size, 0 when unknown
func (p RawProgress) Total() float64 {
	if p.TotalBytes > 0 {
		return p.TotalBytes
	}
	if p.TotalBytesEstimate > 0 {
		return p.TotalBytesEstimate
	}
	return 0
}

// ProgressFunc receives raw progress callbacks. It runs on the goroutine that
// drives the download and must not block.
type ProgressFunc func(RawProgress)

// ProgressSink is one subscriber's outbound transport
type ProgressSink interface {
	Send(ctx context.Context, event ProgressEvent) error
	Close() error
}
