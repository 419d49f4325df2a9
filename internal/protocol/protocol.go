// Package protocol defines the teammate wire messages. Every message is
// a flat JSON object routed by its type tag; steady-state messages also
// carry the session id agreed during the handshake.
package protocol

import "encoding/json"

// Message types.
const (
	TypeHello            = "hello"
	TypeHandshakeInit    = "handshake_init"
	TypeHandshakeAck     = "handshake_ack"
	TypeHandshakeConfirm = "handshake_confirm"
	TypeParcelsSensed    = "parcels_sensed"
	TypeAgentsSensed     = "agents_sensed"
	TypeMyInfo           = "my_info"
	TypeMapPartitioning  = "map_partitioning"
)

// BaseMessage lets us route unknown JSON messages by type and filter
// stale sessions before full decoding.
type BaseMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Encode marshals any protocol message for transport.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
