package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayEventNestedShape(t *testing.T) {
	payload := []byte(`{
		"event": "charge.completed",
		"data": {
			"tx_ref": "MKT-1001",
			"id": 4093845,
			"status": "successful",
			"amount": 5000
		}
	}`)

	var event GatewayEvent
	require.NoError(t, json.Unmarshal(payload, &event))

	assert.Equal(t, "charge.completed", event.Event)
	assert.Equal(t, "MKT-1001", event.TxRef)
	assert.Equal(t, "4093845", event.GatewayTxID)
	assert.Equal(t, "successful", event.Status)
	assert.Equal(t, 5000.0, event.Amount)
	assert.JSONEq(t, string(payload), string(event.Raw))
}

func TestGatewayEventFlattenedShape(t *testing.T) {
	payload := []byte(`{
		"event": "charge.completed",
		"tx_ref": "MKT-1002",
		"id": "txn_8839",
		"status": "success",
		"amount": 1250.5
	}`)

	var event GatewayEvent
	require.NoError(t, json.Unmarshal(payload, &event))

	assert.Equal(t, "MKT-1002", event.TxRef)
	assert.Equal(t, "txn_8839", event.GatewayTxID)
	assert.Equal(t, 1250.5, event.Amount)
}

func TestGatewayEventNestedDataWins(t *testing.T) {
	// When both shapes appear, the nested data block is authoritative.
	payload := []byte(`{
		"event": "charge.completed",
		"tx_ref": "TOP-LEVEL",
		"data": {"tx_ref": "MKT-1003", "id": 1, "status": "successful", "amount": 10}
	}`)

	var event GatewayEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, "MKT-1003", event.TxRef)
}

func TestGatewayEventIsSuccessful(t *testing.T) {
	for _, status := range []string{"success", "successful", "completed"} {
		event := GatewayEvent{Status: status}
		assert.True(t, event.IsSuccessful(), "status %q should be successful", status)
	}

	for _, status := range []string{"failed", "pending", "reversed", ""} {
		event := GatewayEvent{Status: status}
		assert.False(t, event.IsSuccessful(), "status %q should not be successful", status)
	}
}

func TestGatewayEventRawPreserved(t *testing.T) {
	payload := []byte(`{"event":"charge.failed","tx_ref":"MKT-1004","status":"failed","amount":99}`)

	var event GatewayEvent
	require.NoError(t, json.Unmarshal(payload, &event))
	assert.Equal(t, string(payload), string(event.Raw))
}
