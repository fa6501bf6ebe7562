package registry

import (
	"encoding/json"
	"testing"

	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/outbox/payloads"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventTrynbuyUpdated, 1, func(payload json.RawMessage) (any, error) {
		var decoded payloads.TrynbuyUpdatedEvent
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"packingStatus":"packed","orderStatus":"ORDER_PACKED"}`)
	output, err := reg.Decode(enums.EventTrynbuyUpdated, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := output.(payloads.TrynbuyUpdatedEvent)
	if !ok || got.PackingStatus != enums.PackingStatusPacked || got.OrderStatus != enums.TrynbuyStatusPacked {
		t.Fatalf("unexpected output %+v", output)
	}

	if _, err := reg.Decode(enums.EventTrynbuyUpdated, 2, input); err == nil {
		t.Fatalf("expected unregistered version to fail")
	}
}

func TestTrynbuyDecodersReturnValues(t *testing.T) {
	reg := NewTrynbuyDecoders()
	out, err := reg.Decode(enums.EventTrynbuySettled, 1, json.RawMessage(`{"billCreated":true,"keptCount":2}`))
	if err != nil {
		t.Fatalf("decode settled: %v", err)
	}
	settled, ok := out.(payloads.TrynbuySettledEvent)
	if !ok || !settled.BillCreated || settled.KeptCount != 2 {
		t.Fatalf("unexpected output %#v", out)
	}
	if _, err := reg.Decode(enums.EventTrynbuyCreated, 1, json.RawMessage(`{"orderNumber":"x"}`)); err == nil {
		t.Fatal("expected bad payload to fail")
	}
}
