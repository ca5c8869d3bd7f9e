package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/v1/multisig-wallets", "/v1/multisig-wallets"},
		{"/v1/approvals/6f1c2a7e-8f9b-4d3c-a1b2-0c9d8e7f6a5b/signatures", "/v1/approvals/:id/signatures"},
		{"/v1/approvals/pending", "/v1/approvals/pending"},
		{
			"/v1/multisig-wallets/6f1c2a7e-8f9b-4d3c-a1b2-0c9d8e7f6a5b/signers/0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d",
			"/v1/multisig-wallets/:id/signers/:id",
		},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, canonicalPath(tt.in), tt.in)
	}
}

func TestInstrumentHandler(t *testing.T) {
	h := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/health", "418"))

	assert.Equal(t, before+1, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(sweepExpired)
	RecordExpired(3)
	RecordExpired(0)
	assert.Equal(t, before+3, testutil.ToFloat64(sweepExpired))

	beforeT := testutil.ToFloat64(requestTransitions.WithLabelValues("approved"))
	RecordTransition("approved")
	assert.Equal(t, beforeT+1, testutil.ToFloat64(requestTransitions.WithLabelValues("approved")))
}
