package model

import (
	"strings"
	"time"
)

// SourceType identifies where a signal's text came from.
type SourceType string

const (
	SourceJobPost SourceType = "job_post"
	SourceWebsite SourceType = "website"
	SourceOCR     SourceType = "ocr"
	SourceManual  SourceType = "manual"
	SourceCSV     SourceType = "csv"
)

// Signal is a unit of raw text submitted for classification. Signals are
// never modified after creation.
type Signal struct {
	ID             string     `json:"id" csv:"id,omitempty"`
	Text           string     `json:"text" csv:"text"`
	SourceType     SourceType `json:"source_type" csv:"source_type,omitempty"`
	SourceURL      string     `json:"source_url,omitempty" csv:"source_url,omitempty"`
	CompanyID      string     `json:"company_id,omitempty" csv:"-"`
	CompanyName    string     `json:"company_name,omitempty" csv:"company_name,omitempty"`
	CompanyWebsite string     `json:"company_website,omitempty" csv:"company_website,omitempty"`
	Industry       string     `json:"industry,omitempty" csv:"industry,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty" csv:"posted_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" csv:"-"`
}

// Validate reports whether the signal carries enough to be classified.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.Text) == "" {
		return ErrEmptySignal
	}
	return nil
}
