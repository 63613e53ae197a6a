package model

import "time"

// Product is a research output attached to a project: an article, a dataset,
// software, a thesis and so on.
type Product struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"projectId"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	DOI         string    `json:"doi,omitempty"`
	URL         string    `json:"url,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductTypes lists the accepted Product.Type values.
var ProductTypes = []string{"ARTICLE", "BOOK", "CHAPTER", "DATASET", "SOFTWARE", "PATENT", "THESIS", "OTHER"}

// Stats is the public portal summary.
type Stats struct {
	Projects       int64            `json:"projects"`
	ActiveProjects int64            `json:"activeProjects"`
	Products       int64            `json:"products"`
	Investigators  int64            `json:"investigators"`
	ProductsByType map[string]int64 `json:"productsByType"`
}
