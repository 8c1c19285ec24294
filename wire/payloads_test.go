package wire_test

import (
	"testing"

	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/wire"
)

// TestProviderPayloadRoundTrip round-trips a provider announcement's port.
func TestProviderPayloadRoundTrip(t *testing.T) {
	raw := wire.EncodeProviderPayload(50051)
	got, err := wire.DecodeProviderPayload(raw)
	if err != nil || got != 50051 {
		t.Fatalf("got %d, err %v", got, err)
	}
}

func TestServiceRegisterRoundTrip(t *testing.T) {
	raw := wire.EncodeServiceRegisterPayload("Add")
	got, err := wire.DecodeServiceRegisterPayload(raw)
	if err != nil || got != "Add" {
		t.Fatalf("got %q, err %v", got, err)
	}
}

// TestServiceRegisterResponseRoundTrip round-trips a successful registration reply.
func TestServiceRegisterResponseRoundTrip(t *testing.T) {
	want := rpcstatus.Result[string]{Code: rpcstatus.SUCCESS, Message: "success", Value: "Add"}
	raw := wire.EncodeServiceRegisterResponsePayload(want)
	got, err := wire.DecodeServiceRegisterResponsePayload(raw)
	if err != nil || got != want {
		t.Fatalf("got %+v, err %v", got, err)
	}
}

// TestServiceDiscoverResponseRoundTrip round-trips a multi-provider discover response.
func TestServiceDiscoverResponseRoundTrip(t *testing.T) {
	providers := []rpcstatus.Result[string]{
		rpcstatus.Ok("127.0.0.1:50051"),
		rpcstatus.Ok("127.0.0.1:50052"),
	}
	raw := wire.EncodeServiceDiscoverResponsePayload("Add", providers)
	service, got, err := wire.DecodeServiceDiscoverResponsePayload(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if service != "Add" || len(got) != 2 || got[0].Value != providers[0].Value || got[1].Value != providers[1].Value {
		t.Fatalf("got service=%q providers=%+v", service, got)
	}
}

func TestServiceDiscoverResponseEmptyMeansNoMethod(t *testing.T) {
	raw := wire.EncodeServiceDiscoverResponsePayload("Missing", []rpcstatus.Result[string]{
		rpcstatus.Err[string](rpcstatus.NoMethod, "discover service: Missing"),
	})
	service, got, err := wire.DecodeServiceDiscoverResponsePayload(raw)
	if err != nil || service != "Missing" || len(got) != 1 || got[0].Code != rpcstatus.NoMethod {
		t.Fatalf("got service=%q providers=%+v err=%v", service, got, err)
	}
}

func TestPublishPayloadRoundTrip(t *testing.T) {
	key := wire.ServiceSubscribeKeyPrefix + "Add"
	raw := wire.EncodePublishPayload(key, wire.EncodeServiceDelta(true, "127.0.0.1:50051"))
	gotKey, data, err := wire.DecodePublishPayload(raw)
	if err != nil || gotKey != key {
		t.Fatalf("got key=%q err=%v", gotKey, err)
	}
	up, addr, err := wire.DecodeServiceDelta(data)
	if err != nil || !up || addr != "127.0.0.1:50051" {
		t.Fatalf("got up=%v addr=%q err=%v", up, addr, err)
	}
}

func TestSubscribeRoundTrip(t *testing.T) {
	raw := wire.EncodeSubscribePayload("topic.a")
	got, err := wire.DecodeSubscribePayload(raw)
	if err != nil || got != "topic.a" {
		t.Fatalf("got %q, err %v", got, err)
	}
}
