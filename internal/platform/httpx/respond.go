// Package httpx holds the JSON transport helpers shared by every handler:
// response writing, list envelopes, RFC7807 problems and common query
// parsing. It stays free of router and domain imports.
package httpx

import (
	"encoding/json"
	"math"
	"net/http"
)

// ProblemDetail is an RFC7807 problem response body.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON writes data as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ListMeta describes the page of a list response.
type ListMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewListMeta normalises paging inputs; per-page defaults to 20.
func NewListMeta(page, perPage, total int) ListMeta {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	return ListMeta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
	}
}

type listEnvelope struct {
	Items any      `json:"items"`
	Meta  ListMeta `json:"meta"`
}

// JSONList writes the standard list envelope of items plus paging metadata.
func JSONList(w http.ResponseWriter, items any, meta ListMeta) {
	JSON(w, http.StatusOK, listEnvelope{Items: items, Meta: meta})
}

// Problem writes an RFC7807 problem response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON reads the request body into target.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
