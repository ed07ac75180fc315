package problems

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasePrecedence(t *testing.T) {
	t.Setenv("PROBLEM_BASE_URL", "")
	t.Setenv("PAR_ISSUER", "")
	assert.Equal(t, "https://example.com/problems", Base())

	t.Setenv("PAR_ISSUER", "https://auth.acme.com/")
	assert.Equal(t, "https://auth.acme.com/problems", Base())

	t.Setenv("PROBLEM_BASE_URL", "https://docs.acme.com/errors/")
	assert.Equal(t, "https://docs.acme.com/errors/server-error", Type("server-error"))
}

func TestWriteServerError(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, ServerError("req-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var p Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "req-1", p.RequestID)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
}
