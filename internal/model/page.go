package model

// Page is one page of a listing. Items is never nil, so an empty listing
// encodes as [] rather than null.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
}
