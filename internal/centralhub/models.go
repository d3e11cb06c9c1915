package centralhub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AuthorizationResult is the outcome of one license check. Values are never
// mutated after construction.
type AuthorizationResult struct {
	IsValid    bool       `json:"is_valid"`
	Message    string     `json:"message"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	MaxUsers   int        `json:"max_users"`
	TenantName string     `json:"tenant_name,omitempty"`
	// Outcome records how the check ended; KindSuccess means Central Hub
	// answered, whatever the answer was.
	Outcome Kind `json:"-"`
}

// ActivationResult is returned by Client.Activate.
type ActivationResult struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	CompanyCode string     `json:"company_code,omitempty"`
	TenantName  string     `json:"tenant_name,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	MaxUsers    int        `json:"max_users"`
}

// CreditBalance is the authoritative balance held by Central Hub.
type CreditBalance struct {
	Balance     decimal.Decimal `json:"balance"`
	TenantName  string          `json:"companyName,omitempty"`
	LastUpdated *HubTime        `json:"lastUpdated,omitempty"`
}

// CreditConsumptionRequest is the body of POST consume-credits.
type CreditConsumptionRequest struct {
	CreditsToConsume int    `json:"creditsToConsume" validate:"min=1"`
	Reason           string `json:"reason,omitempty" validate:"max=500"`
}

// ConsumeResult is returned by consume-credits. The balance is never
// adjusted locally.
type ConsumeResult struct {
	Success          bool            `json:"success"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
	Error            string          `json:"error,omitempty"`
}

// licenseCheckResponse is the wire shape of check-license and validate/{key}.
type licenseCheckResponse struct {
	IsValid     bool       `json:"isValid"`
	Message     string     `json:"message"`
	ExpiryDate  *HubTime   `json:"expiryDate"`
	MaxUsers    int        `json:"maxUsers"`
	CompanyName string     `json:"companyName"`
	CompanyCode FlexString `json:"companyCode"`
}

// HubTime accepts the timestamp layouts Central Hub emits, including ones
// without a zone offset, which are read as UTC.
type HubTime struct {
	time.Time
}

var hubTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *HubTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range hubTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// Ptr returns nil for a zero or nil HubTime.
func (t *HubTime) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// FlexString decodes either a JSON string or a JSON number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}
