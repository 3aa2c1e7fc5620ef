package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voucher-node/internal/service"
	"voucher-node/internal/sign"
	"voucher-node/internal/transport"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := sign.GenerateKey()
	require.NoError(t, err)
	pool := transport.NewPool(time.Second, transport.NewMemoryEndpoint("mem"))
	svc := service.New("issuer-a", key, pool)

	h := New(svc)
	r := gin.New()
	r.POST("/vouchers", h.Issue)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestIssueValidRequest(t *testing.T) {
	r := newTestRouter(t)
	w := postJSON(t, r, "/vouchers", gin.H{
		"unit":      "sat",
		"faceValue": 10000,
		"backing":   "MINIMAL",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var dto EnvelopeDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dto))
	assert.Equal(t, "issuer-a", dto.Voucher.Issuer)
	assert.NotEmpty(t, dto.Voucher.ID)
	assert.Len(t, dto.Signature, 128)
	assert.Len(t, dto.PublicKey, 64)
}

// Structural problems like a zero face value belong to the validation
// taxonomy: 422 with reasons, not a generic binding 400.
func TestIssueZeroFaceValueIsUnprocessable(t *testing.T) {
	r := newTestRouter(t)
	w := postJSON(t, r, "/vouchers", gin.H{
		"unit":      "sat",
		"faceValue": 0,
		"backing":   "MINIMAL",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Reasons []string `json:"reasons"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Reasons)
	assert.Contains(t, resp.Reasons[0], "face value")
}

func TestIssueMissingFieldsAreUnprocessable(t *testing.T) {
	r := newTestRouter(t)
	w := postJSON(t, r, "/vouchers", gin.H{"faceValue": 5})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
