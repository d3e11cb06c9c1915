package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// HubCall records one request received by a FakeHub.
type HubCall struct {
	Method      string
	Path        string
	CompanyCode string
}

// FakeHub is an in-process Central Hub. Its zero state answers every license
// check with a valid license and holds no credits.
type FakeHub struct {
	Server *httptest.Server

	mu          sync.Mutex
	valid       bool
	message     string
	tenantName  string
	expiry      time.Time
	balance     int
	licenseKeys map[string]string
	status      int
	calls       []HubCall
}

// NewFakeHub starts a FakeHub that is closed when t finishes.
func NewFakeHub(t *testing.T) *FakeHub {
	t.Helper()
	h := &FakeHub{
		valid:       true,
		tenantName:  "Acme Holdings",
		expiry:      time.Now().UTC().Add(90 * 24 * time.Hour).Truncate(time.Second),
		licenseKeys: make(map[string]string),
	}
	h.Server = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.Server.Close)
	return h
}

// URL is the base URL to configure a client with.
func (h *FakeHub) URL() string {
	return h.Server.URL
}

// SetLicense changes the answer to check-license.
func (h *FakeHub) SetLicense(valid bool, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = valid
	h.message = message
}

// SetBalance sets the credit balance.
func (h *FakeHub) SetBalance(credits int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.balance = credits
}

// Balance returns the credit balance.
func (h *FakeHub) Balance() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.balance
}

// AddLicenseKey makes key activatable, returning companyCode on activation.
func (h *FakeHub) AddLicenseKey(key, companyCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.licenseKeys[key] = companyCode
}

// FailWith makes every endpoint answer with status. Zero restores normal answers.
func (h *FakeHub) FailWith(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

// Calls returns every request received so far.
func (h *FakeHub) Calls() []HubCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HubCall, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallCount returns how many requests hit path.
func (h *FakeHub) CallCount(path string) int {
	n := 0
	for _, c := range h.Calls() {
		if c.Path == path {
			n++
		}
	}
	return n
}

func (h *FakeHub) serve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, HubCall{
		Method:      r.Method,
		Path:        r.URL.Path,
		CompanyCode: r.Header.Get("X-Company-Code"),
	})
	if h.status != 0 {
		w.WriteHeader(h.status)
		return
	}

	switch {
	case r.URL.Path == "/api/core/ping":
		writeHubJSON(w, map[string]any{"status": "ok"})

	case r.URL.Path == "/api/core/check-license":
		writeHubJSON(w, map[string]any{
			"isValid":     h.valid,
			"message":     h.message,
			"expiryDate":  h.expiry.Format("2006-01-02T15:04:05"),
			"maxUsers":    100,
			"companyName": h.tenantName,
		})

	case strings.HasPrefix(r.URL.Path, "/api/core/validate/"):
		key := strings.TrimPrefix(r.URL.Path, "/api/core/validate/")
		code, ok := h.licenseKeys[key]
		if !ok {
			writeHubJSON(w, map[string]any{"isValid": false, "message": "License key not recognised"})
			return
		}
		writeHubJSON(w, map[string]any{
			"isValid":     true,
			"message":     "License activated",
			"companyCode": code,
			"companyName": h.tenantName,
			"expiryDate":  h.expiry.Format(time.RFC3339),
			"maxUsers":    100,
		})

	case r.URL.Path == "/api/core/check-credits":
		writeHubJSON(w, map[string]any{
			"balance":     h.balance,
			"companyName": h.tenantName,
			"lastUpdated": time.Now().UTC().Format("2006-01-02T15:04:05.9999999"),
		})

	case r.URL.Path == "/api/core/consume-credits" && r.Method == http.MethodPost:
		var req struct {
			CreditsToConsume int    `json:"creditsToConsume"`
			Reason           string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CreditsToConsume < 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.CreditsToConsume > h.balance {
			writeHubJSON(w, map[string]any{"success": false, "remainingBalance": h.balance, "error": "Insufficient credits"})
			return
		}
		h.balance -= req.CreditsToConsume
		writeHubJSON(w, map[string]any{"success": true, "remainingBalance": h.balance})

	default:
		http.NotFound(w, r)
	}
}

func writeHubJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
