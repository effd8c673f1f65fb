package model

import "time"

// EventImageCreated tags events emitted after a successful ingestion.
const EventImageCreated = "image_created"

// ImageCreatedEvent is the payload announced on the message bus. It is built
// per ingestion and never stored.
type ImageCreatedEvent struct {
	EventType string     `json:"event_type"`
	Image     EventImage `json:"image"`
}

// EventImage mirrors Image; CreatedAt serializes as ISO-8601 or null.
type EventImage struct {
	ID          string     `json:"id"`
	SourceURL   string     `json:"source_url"`
	FileName    string     `json:"file_name"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	CreatedAt   *time.Time `json:"created_at"`
}

func NewImageCreatedEvent(img Image) ImageCreatedEvent {
	ev := ImageCreatedEvent{
		EventType: EventImageCreated,
		Image: EventImage{
			ID:          img.ID,
			SourceURL:   img.SourceURL,
			FileName:    img.FileName,
			ContentType: img.ContentType,
			SizeBytes:   img.SizeBytes,
		},
	}
	if !img.CreatedAt.IsZero() {
		ts := img.CreatedAt
		ev.Image.CreatedAt = &ts
	}
	return ev
}
