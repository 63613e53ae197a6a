package model

import "time"

// Project statuses.
const (
	StatusPlanned   = "PLANNED"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusSuspended = "SUSPENDED"
)

// Project is a research project owned by an investigator.
type Project struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Summary   string     `json:"summary"`
	Status    string     `json:"status"`
	OwnerID   int64      `json:"ownerId"`
	OwnerName string     `json:"ownerName,omitempty"`
	IsPublic  bool       `json:"isPublic"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ProjectFilter narrows project listings.  Zero fields do not filter.
type ProjectFilter struct {
	Status     string
	Query      string
	OwnerID    int64
	PublicOnly bool
	Limit      int
	Offset     int
}
