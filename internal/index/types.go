// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package index discovers and paginates sessions from the rollout
// filesystem layout or an optional read-only SQLite index.
package index

import "time"

// Record is a session listing-view record.
type Record struct {
	ID               string     `json:"id"`
	RolloutPath      string     `json:"rolloutPath"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	Source           string     `json:"source"`
	ModelProvider    string     `json:"modelProvider,omitempty"`
	Cwd              string     `json:"cwd"`
	CLIVersion       string     `json:"cliVersion"`
	Title            string     `json:"title"`
	FirstUserMessage string     `json:"firstUserMessage,omitempty"`
	ArchivedAt       *time.Time `json:"archivedAt,omitempty"`
	GitSHA           string     `json:"git,omitempty"`
	GitBranch        string     `json:"gitBranch,omitempty"`
	GitOriginURL     string     `json:"gitOriginUrl,omitempty"`
	ForkedFromID     string     `json:"forkedFromId,omitempty"`
}

// SortField selects which field ListOptions sorts by.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListOptions filters, sorts and paginates a listSessions call.
type ListOptions struct {
	Source    string
	Cwd       string
	GitBranch string
	SortBy    SortField
	SortOrder SortOrder
	Limit     int
	Offset    int
}

// WithDefaults fills in the listing defaults: limit=50, offset=0,
// sortBy=createdAt, sortOrder=desc.
func (o ListOptions) WithDefaults() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.SortBy == "" {
		o.SortBy = SortCreatedAt
	}
	if o.SortOrder == "" {
		o.SortOrder = SortDesc
	}
	return o
}

// Page is the paginated result of listSessions.
type Page struct {
	Sessions []Record `json:"sessions"`
	Total    int      `json:"total"`
	Offset   int      `json:"offset"`
	Limit    int      `json:"limit"`
}
