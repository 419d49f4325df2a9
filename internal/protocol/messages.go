package protocol

import "gridcourier/internal/domain"

// Hello (broadcast) announces presence until the handshake completes.
type Hello struct {
	Type      string `json:"type"`
	TeamID    string `json:"team_id"`
	AgentID   string `json:"agent_id"`
	Timestamp int64  `json:"timestamp"`
}

// HandshakeInit (ask, lower id -> higher id) opens the three-way
// handshake.
type HandshakeInit struct {
	Type    string `json:"type"`
	TeamKey string `json:"team_key"`
	Nonce   string `json:"nonce"`
	From    string `json:"from"`
}

// HandshakeAck is the reply carrying the fresh session id and the nonce
// echo.
type HandshakeAck struct {
	Type      string `json:"type"`
	TeamKey   string `json:"team_key"`
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	EchoNonce string `json:"echo_nonce"`
}

// HandshakeConfirm completes the handshake on the responder side.
type HandshakeConfirm struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	From      string `json:"from"`
}

// ParcelsSensed shares a parcel sensing event with the teammate.
type ParcelsSensed struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	From      string          `json:"from"`
	Parcels   []domain.Parcel `json:"parcels"`
}

// AgentsSensed shares an agent sighting with the teammate.
type AgentsSensed struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	From      string         `json:"from"`
	Agents    []domain.Agent `json:"agents"`
}

// MyInfo updates the teammate's record of this agent.
type MyInfo struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	From      string       `json:"from"`
	Info      domain.Agent `json:"info"`
}

// MapPartitioning replaces the receiver's cached generator assignment.
type MapPartitioning struct {
	Type         string            `json:"type"`
	SessionID    string            `json:"session_id"`
	From         string            `json:"from"`
	Partitioning map[string]string `json:"partitioning"`
}
