package wire

import (
	"encoding/json"
	"testing"
	"time"

	"frameworks/api_wattmeter/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"MeterReading","reading":100.5}`))
	require.NoError(t, err)
	require.Equal(t, 100.5, msg.Reading)
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"Bogus"}`))
	require.Error(t, err)
}

func TestEncodeBillShape(t *testing.T) {
	b := models.Bill{
		UnitsStart:          0,
		UnitsEnd:            100,
		ActualUsage:         20,
		StandingCharge:      0.4,
		Total:               20.4,
		PricePerUnit:        0.2,
		DailyStandingCharge: 0.4,
		BillingPeriod: models.BillingPeriod{
			Start: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	payload, err := EncodeBill(b)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "Bill", decoded["type"])

	period, ok := decoded["billing_period"].(map[string]any)
	require.True(t, ok, "expected billing_period object, got %T", decoded["billing_period"])
	require.Equal(t, "2026-07-01", period["start"])
	require.Equal(t, "2026-08-01", period["end"])
}

func TestEncodePowerGridIssue(t *testing.T) {
	payload, err := EncodePowerGridIssue("power grid error")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "PowerGridIssue", decoded["type"])
	require.Equal(t, "power grid error", decoded["error"])
}

func TestEncodePowerGridIssueResolved(t *testing.T) {
	payload, err := EncodePowerGridIssueResolved()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, "PowerGridIssueResolved", decoded["type"])
}
