// Package chart defines the contract for the external chart-rendering
// collaborator (spec §1: chart rendering is out of scope, treated as a
// contract-level external collaborator).
package chart

import "context"

// Service renders chart code (e.g. an embedded python snippet from
// MultistepFlow's InvestigationStep) into a retrievable file and reports
// its URL (spec §6: POST /chart, GET /chart/{file}).
type Service interface {
	Render(ctx context.Context, code string) (url string, err error)
	Open(ctx context.Context, file string) ([]byte, error)
}

// NotFoundError indicates GET /chart/{file} named a file the service
// never produced (spec §7: "NotFound: HTTP 404 for unknown ... chart").
type NotFoundError struct {
	File string
}

func (e NotFoundError) Error() string { return "chart not found: " + e.File }
