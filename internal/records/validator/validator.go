// Package validator checks record documents against the literature schema's
// required shape and produces the structured issue list that resolution
// callbacks carry back to curators.
package validator

import (
	"fmt"

	"bibflow/internal/records/models"
)

// Issue is one structured validation failure.
type Issue struct {
	Path    []string `json:"path"`
	Message string   `json:"message"`
}

// Validator validates a record document for a named schema.
type Validator interface {
	Validate(schema string, record *models.Record) []Issue
}

// Literature validates the "hep" literature schema: required top-level fields
// plus shape checks on identifier-bearing lists.
type Literature struct{}

func NewLiterature() *Literature {
	return &Literature{}
}

func (v *Literature) Validate(schema string, record *models.Record) []Issue {
	var issues []Issue
	if record == nil {
		return []Issue{{Path: nil, Message: "record document is required"}}
	}
	if record.Schema == "" {
		issues = append(issues, Issue{Path: []string{"$schema"}, Message: "required: $schema"})
	}
	if len(record.Titles) == 0 {
		issues = append(issues, Issue{Path: []string{"titles"}, Message: "required: titles"})
	}
	if len(record.DocumentType) == 0 {
		issues = append(issues, Issue{Path: []string{"document_type"}, Message: "required: document_type"})
	}
	for i, title := range record.Titles {
		if title.Title == "" {
			issues = append(issues, Issue{
				Path:    []string{"titles", fmt.Sprintf("%d", i), "title"},
				Message: "title must not be empty",
			})
		}
	}
	for i, eprint := range record.ArxivEprints {
		if eprint.Value == "" {
			issues = append(issues, Issue{
				Path:    []string{"arxiv_eprints", fmt.Sprintf("%d", i), "value"},
				Message: "arxiv eprint value must not be empty",
			})
		}
	}
	for i, isbn := range record.ISBNs {
		if isbn.Value == "" {
			issues = append(issues, Issue{
				Path:    []string{"isbns", fmt.Sprintf("%d", i), "value"},
				Message: "isbn value must not be empty",
			})
		}
	}
	return issues
}
