// Package school holds the read-mostly school directory the scope
// checks and visit creation depend on.
package school

import "time"

// School is a school record from the district roster.
type School struct {
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	Region     *string    `json:"region,omitempty"`
	ImportedAt *time.Time `json:"imported_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
