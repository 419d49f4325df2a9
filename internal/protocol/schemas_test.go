package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"gridcourier/internal/domain"
	"gridcourier/internal/protocol"
)

func TestSchemas_ValidateEncodedMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	roundTrip := func(v any) any {
		t.Helper()
		raw, err := protocol.Encode(v)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return decoded
	}

	validate := func(name string, v any) {
		t.Helper()
		if err := compile(name).Validate(roundTrip(v)); err != nil {
			t.Fatalf("validate %s: %v", name, err)
		}
	}

	validate("hello.schema.json", protocol.Hello{
		Type: protocol.TypeHello, TeamID: "team-1", AgentID: "a1", Timestamp: 1724572800000,
	})
	validate("handshake_init.schema.json", protocol.HandshakeInit{
		Type: protocol.TypeHandshakeInit, TeamKey: "team-1", Nonce: "n-42", From: "a1",
	})
	validate("handshake_ack.schema.json", protocol.HandshakeAck{
		Type: protocol.TypeHandshakeAck, TeamKey: "team-1", SessionID: "s-1", From: "a2", EchoNonce: "n-42",
	})
	validate("handshake_confirm.schema.json", protocol.HandshakeConfirm{
		Type: protocol.TypeHandshakeConfirm, SessionID: "s-1", From: "a1",
	})
	validate("parcels_sensed.schema.json", protocol.ParcelsSensed{
		Type: protocol.TypeParcelsSensed, SessionID: "s-1", From: "a1",
		Parcels: []domain.Parcel{{ID: "p1", X: 3, Y: 4, Reward: 8}},
	})
	validate("agents_sensed.schema.json", protocol.AgentsSensed{
		Type: protocol.TypeAgentsSensed, SessionID: "s-1", From: "a1",
		Agents: []domain.Agent{{ID: "rival", Name: "rival", X: 1.5, Y: 2, Score: 10}},
	})
	validate("my_info.schema.json", protocol.MyInfo{
		Type: protocol.TypeMyInfo, SessionID: "s-1", From: "a1",
		Info: domain.Agent{ID: "a1", Name: "courier", X: 0, Y: 0, Score: 3},
	})
	validate("map_partitioning.schema.json", protocol.MapPartitioning{
		Type: protocol.TypeMapPartitioning, SessionID: "s-1", From: "a1",
		Partitioning: map[string]string{"2,3": "a1", "7,7": "a2"},
	})
}

func TestDecodeBaseRoutesByType(t *testing.T) {
	raw, err := protocol.Encode(protocol.ParcelsSensed{
		Type: protocol.TypeParcelsSensed, SessionID: "s-9", From: "a2",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		t.Fatalf("decode base: %v", err)
	}
	if base.Type != protocol.TypeParcelsSensed || base.SessionID != "s-9" {
		t.Fatalf("base = %+v", base)
	}
}
