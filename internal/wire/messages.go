package wire

import (
	"encoding/json"
	"fmt"

	"frameworks/api_wattmeter/internal/models"
)

// Auth is the phase-1 client->server handshake payload.
type Auth struct {
	ID    uint64 `json:"id"`
	Token string `json:"token"`
}

// Raw ASCII auth responses. These are sent as bare frame payloads,
// never wrapped in JSON, per spec.md §4.E/§6.
const (
	AuthSuccess      = "Authentication successful"
	AuthFailed       = "Authentication failed"
	AlreadyConnected = "Another smart meter is already connected"
)

// ClientMessage is the post-auth client->server tagged union.
type ClientMessage struct {
	Type    string  `json:"type"`
	Reading float64 `json:"reading"`
}

// ParseClientMessage unmarshals a post-auth client frame expected to be a
// MeterReading message.
func ParseClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("wire: decoding client message: %w", err)
	}
	if msg.Type != "MeterReading" {
		return ClientMessage{}, fmt.Errorf("wire: unknown client message type %q", msg.Type)
	}
	return msg, nil
}

// billJSON is the wire shape for ServerMessage{Type: "Bill"}: the
// Bill fields per spec.md §6, with the billing period rendered as
// plain calendar dates.
type billJSON struct {
	Type                string         `json:"type"`
	ActualUsage         float64        `json:"actual_usage"`
	StandingCharge      float64        `json:"standing_charge"`
	Total               float64        `json:"total"`
	UnitsStart          float64        `json:"units_start"`
	UnitsEnd            float64        `json:"units_end"`
	PricePerUnit        float64        `json:"price_per_unit"`
	DailyStandingCharge float64        `json:"daily_standing_charge"`
	BillingPeriod       billPeriodJSON `json:"billing_period"`
}

type billPeriodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

const dateLayout = "2006-01-02"

// EncodeBill renders a Bill as the ServerMessage{type:"Bill", ...} JSON payload.
func EncodeBill(b models.Bill) ([]byte, error) {
	return json.Marshal(billJSON{
		Type:                "Bill",
		ActualUsage:         b.ActualUsage,
		StandingCharge:      b.StandingCharge,
		Total:               b.Total,
		UnitsStart:          b.UnitsStart,
		UnitsEnd:            b.UnitsEnd,
		PricePerUnit:        b.PricePerUnit,
		DailyStandingCharge: b.DailyStandingCharge,
		BillingPeriod: billPeriodJSON{
			Start: b.BillingPeriod.Start.Format(dateLayout),
			End:   b.BillingPeriod.End.Format(dateLayout),
		},
	})
}

type powerGridIssueJSON struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// EncodePowerGridIssue renders ServerMessage{type:"PowerGridIssue", error}.
func EncodePowerGridIssue(errMsg string) ([]byte, error) {
	return json.Marshal(powerGridIssueJSON{Type: "PowerGridIssue", Error: errMsg})
}

type powerGridIssueResolvedJSON struct {
	Type string `json:"type"`
}

// EncodePowerGridIssueResolved renders ServerMessage{type:"PowerGridIssueResolved"}.
func EncodePowerGridIssueResolved() ([]byte, error) {
	return json.Marshal(powerGridIssueResolvedJSON{Type: "PowerGridIssueResolved"})
}
