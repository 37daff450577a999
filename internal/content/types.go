// Package content holds the owned resources exposed by the platform surface:
// news articles authored by municipalities, job offers published by companies
// and applications submitted by users.
package content

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("content: not found")

// Article is a news item. AuthorID references the authoring municipality.
type Article struct {
	ID        string
	Title     string
	Body      string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobOffer is a vacancy published by a company.
type JobOffer struct {
	ID          string
	CompanyID   string
	Title       string
	Description string
	Location    string
	CreatedAt   time.Time
}

// Application is a user's application to a job offer. StudentID is set when
// the applicant enrolled through a training-center profile.
type Application struct {
	ID        string
	OfferID   string
	UserID    string
	StudentID string
	Message   string
	CreatedAt time.Time
}

// Owner reports the possible owner fields of a resource. Ownership checks
// read UserID first, then StudentID, then AuthorID; the first non-empty field
// wins.
type Owner struct {
	UserID    string
	StudentID string
	AuthorID  string
}

// ID returns the effective owner identifier by priority, or "".
func (o Owner) ID() string {
	switch {
	case o.UserID != "":
		return o.UserID
	case o.StudentID != "":
		return o.StudentID
	case o.AuthorID != "":
		return o.AuthorID
	default:
		return ""
	}
}
