package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewListMetaNormalises(t *testing.T) {
	meta := NewListMeta(0, 0, 45)
	require.Equal(t, ListMeta{Page: 1, PerPage: 20, Total: 45, TotalPages: 3}, meta)
}

func TestJSONListEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONList(rec, []string{"a", "b"}, NewListMeta(1, 2, 2))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []string `json:"items"`
		Meta  ListMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"a", "b"}, body.Items)
	require.Equal(t, ListMeta{Page: 1, PerPage: 2, Total: 2, TotalPages: 1}, body.Meta)
}
