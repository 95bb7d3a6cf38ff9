// Package mpostgres holds the Postgres connection wrapper and the
// pagination envelope shared by every listing endpoint, mirroring the
// teacher's common/mpostgres package.
package mpostgres

// Pagination is the envelope every "list" endpoint returns.
//
// swagger:model Pagination
type Pagination struct {
	Items any `json:"items"`
	Page  int `json:"page" example:"1"`
	Limit int `json:"limit" example:"25"`
}

// SetItems assigns the page's items.
func (p *Pagination) SetItems(items any) {
	p.Items = items
}
