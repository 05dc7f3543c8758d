package domain

import "time"

// GenerationStatus is the lifecycle state of a history record.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
)

// GenerationRequest is the immutable input of one image pipeline run.
type GenerationRequest struct {
	Brand            string
	Name             string
	Description      string
	ImagePath        string
	ImageURL         string
	PromptBackground string
	PromptStylize    string
	ProductID        int64
}

// GenerationRecord is one append-only history entry.
type GenerationRecord struct {
	Timestamp      string           `json:"timestamp"`
	Brand          string           `json:"brand"`
	PerfumeName    string           `json:"perfume_name"`
	Description    string           `json:"description"`
	OriginalImage  string           `json:"original_image,omitempty"`
	FinalImage     string           `json:"final_image"`
	FinalImagePath string           `json:"final_image_path,omitempty"`
	Status         GenerationStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}
