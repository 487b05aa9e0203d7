package models

import (
	"time"

	"github.com/google/uuid"
)

// BrandProfile scrape statuses.
const (
	BrandStatusPending = "pending"
	BrandStatusReady   = "ready"
	BrandStatusFailed  = "failed"
)

// BrandProfile holds the assets discovered by scraping a client's site.
type BrandProfile struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	SourceURL string    `json:"source_url"`
	Name      string    `json:"name,omitempty"`
	Palette   []string  `json:"palette,omitempty"`
	Assets    []string  `json:"assets,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StyleReference is one curated reference image used for style matching.
type StyleReference struct {
	ID          uuid.UUID `json:"id"`
	ImageURL    string    `json:"image_url"`
	R           uint8     `json:"r"`
	G           uint8     `json:"g"`
	B           uint8     `json:"b"`
	ColorFamily string    `json:"color_family"`
	CreatedAt   time.Time `json:"created_at"`
}
