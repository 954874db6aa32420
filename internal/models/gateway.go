package models

import "encoding/json"

// Gateway settlement statuses as they appear in webhook payloads. Gateways are
// not consistent here, so ParseSettlementStatus normalizes the variants.
const (
	SettlementSuccess = "success"
	SettlementFailed  = "failed"
)

// GatewayEvent is a payment gateway webhook notification. Some gateways nest
// the transaction details under "data", others flatten them into the top
// level; UnmarshalJSON accepts both shapes.
type GatewayEvent struct {
	Event       string  `json:"event"`
	TxRef       string  `json:"tx_ref"`
	GatewayTxID string  `json:"id"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`

	// Raw carries the exact bytes received, persisted on the transaction row
	// for audit.
	Raw json.RawMessage `json:"-"`
}

type gatewayEventData struct {
	TxRef  string          `json:"tx_ref"`
	ID     json.RawMessage `json:"id"`
	Status string          `json:"status"`
	Amount float64         `json:"amount"`
}

type gatewayEventEnvelope struct {
	Event string            `json:"event"`
	Data  *gatewayEventData `json:"data"`
	gatewayEventData
}

func (e *GatewayEvent) UnmarshalJSON(b []byte) error {
	var env gatewayEventEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	d := env.gatewayEventData
	if env.Data != nil {
		d = *env.Data
	}

	e.Event = env.Event
	e.TxRef = d.TxRef
	e.Status = d.Status
	e.Amount = d.Amount
	e.GatewayTxID = decodeFlexibleID(d.ID)
	e.Raw = append([]byte(nil), b...)
	return nil
}

// decodeFlexibleID handles gateways that send the transaction id as either a
// JSON string or a number.
func decodeFlexibleID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

// IsSuccessful reports whether the event is a successful settlement. Gateways
// report "success", "successful" or "completed" depending on the provider.
func (e *GatewayEvent) IsSuccessful() bool {
	switch e.Status {
	case "success", "successful", "completed":
		return true
	}
	return false
}
