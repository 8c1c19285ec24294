// File: wire/payloads.go
// Payload encodings for the fixed message types: each function builds or
// parses the opaque Frame.Payload bytes for one message
// type, layered on bytebuf/serializer/rpcstatus. RPC_METHOD_REQUEST and
// RPC_METHOD_RESPONSE carry caller-defined argument/return shapes and are
// left to rpcserver/rpcclient, which already hold the serializer directly.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wire

import (
	"github.com/momentics/hioload-ws/bytebuf"
	"github.com/momentics/hioload-ws/rpcstatus"
	"github.com/momentics/hioload-ws/serializer"
)

// EncodeProviderPayload builds RPC_PROVIDER's payload: a varint-uint32 port.
func EncodeProviderPayload(port uint32) []byte {
	buf := bytebuf.New()
	buf.WriteVarintU32(port)
	return buf.Bytes()
}

// DecodeProviderPayload parses RPC_PROVIDER's payload.
func DecodeProviderPayload(payload []byte) (uint32, error) {
	buf := bytebuf.FromBytes(payload)
	return buf.ReadVarintU32()
}

// EncodeServiceRegisterPayload builds RPC_SERVICE_REGISTER's payload: a
// varint-length-prefixed method name.
func EncodeServiceRegisterPayload(method string) []byte {
	buf := bytebuf.New()
	buf.WriteString(method)
	return buf.Bytes()
}

// DecodeServiceRegisterPayload parses RPC_SERVICE_REGISTER's payload.
func DecodeServiceRegisterPayload(payload []byte) (string, error) {
	return bytebuf.FromBytes(payload).ReadString()
}

// EncodeServiceRegisterResponsePayload builds
// RPC_SERVICE_REGISTER_RESPONSE's payload: a Result<string>.
func EncodeServiceRegisterResponsePayload(r rpcstatus.Result[string]) []byte {
	buf := bytebuf.New()
	rpcstatus.EncodeResultString(serializer.NewWriter(buf), r)
	return buf.Bytes()
}

// DecodeServiceRegisterResponsePayload parses
// RPC_SERVICE_REGISTER_RESPONSE's payload.
func DecodeServiceRegisterResponsePayload(payload []byte) (rpcstatus.Result[string], error) {
	buf := bytebuf.FromBytes(payload)
	return rpcstatus.DecodeResultString(serializer.NewReader(buf))
}

// EncodeServiceDiscoverPayload builds RPC_SERVICE_DISCOVER's payload: a
// varint-length-prefixed service name.
func EncodeServiceDiscoverPayload(service string) []byte {
	buf := bytebuf.New()
	buf.WriteString(service)
	return buf.Bytes()
}

// DecodeServiceDiscoverPayload parses RPC_SERVICE_DISCOVER's payload.
func DecodeServiceDiscoverPayload(payload []byte) (string, error) {
	return bytebuf.FromBytes(payload).ReadString()
}

// EncodeServiceDiscoverResponsePayload builds
// RPC_SERVICE_DISCOVER_RESPONSE's payload: service name, uint32 count, then
// count Result<string> entries (per-provider address, or a single
// Result{NO_METHOD} when there are no providers).
func EncodeServiceDiscoverResponsePayload(service string, providers []rpcstatus.Result[string]) []byte {
	buf := bytebuf.New()
	buf.WriteString(service)
	buf.WriteUint32(uint32(len(providers)))
	w := serializer.NewWriter(buf)
	for _, p := range providers {
		rpcstatus.EncodeResultString(w, p)
	}
	return buf.Bytes()
}

// DecodeServiceDiscoverResponsePayload parses
// RPC_SERVICE_DISCOVER_RESPONSE's payload.
func DecodeServiceDiscoverResponsePayload(payload []byte) (service string, providers []rpcstatus.Result[string], err error) {
	buf := bytebuf.FromBytes(payload)
	if service, err = buf.ReadString(); err != nil {
		return "", nil, err
	}
	count, err := buf.ReadUint32()
	if err != nil {
		return "", nil, err
	}
	r := serializer.NewReader(buf)
	providers = make([]rpcstatus.Result[string], 0, count)
	for i := uint32(0); i < count; i++ {
		p, err := rpcstatus.DecodeResultString(r)
		if err != nil {
			return service, nil, err
		}
		providers = append(providers, p)
	}
	return service, providers, nil
}

// EncodeSubscribePayload builds RPC_SUBSCRIBE_REQUEST's payload: a
// varint-length-prefixed subscription key.
func EncodeSubscribePayload(key string) []byte {
	buf := bytebuf.New()
	buf.WriteString(key)
	return buf.Bytes()
}

// DecodeSubscribePayload parses RPC_SUBSCRIBE_REQUEST's payload.
func DecodeSubscribePayload(payload []byte) (string, error) {
	return bytebuf.FromBytes(payload).ReadString()
}

// EncodeSubscribeResponsePayload builds RPC_SUBSCRIBE_RESPONSE's payload: a
// Result<string> whose Value carries the subscribed key back, SUCCESS on
// acceptance.
func EncodeSubscribeResponsePayload(r rpcstatus.Result[string]) []byte {
	return EncodeServiceRegisterResponsePayload(r)
}

// DecodeSubscribeResponsePayload parses RPC_SUBSCRIBE_RESPONSE's payload.
func DecodeSubscribeResponsePayload(payload []byte) (rpcstatus.Result[string], error) {
	return DecodeServiceRegisterResponsePayload(payload)
}

// EncodePublishPayload builds RPC_PUBLISH_REQUEST's payload: a
// varint-length-prefixed key followed by the opaque publisher data.
func EncodePublishPayload(key string, data []byte) []byte {
	buf := bytebuf.New()
	buf.WriteString(key)
	buf.Write(data)
	return buf.Bytes()
}

// DecodePublishPayload parses RPC_PUBLISH_REQUEST's payload into its key
// and the remainder of the payload as opaque data.
func DecodePublishPayload(payload []byte) (key string, data []byte, err error) {
	buf := bytebuf.FromBytes(payload)
	if key, err = buf.ReadString(); err != nil {
		return "", nil, err
	}
	data = make([]byte, buf.Remaining())
	if err := buf.Read(data); err != nil {
		return key, nil, err
	}
	return key, data, nil
}

// ServiceSubscribeKeyPrefix is prepended to a service name to form the
// subscription key the registry and pool use for up/down notifications.
const ServiceSubscribeKeyPrefix = "[[rpc service subscribe]]"

// EncodeServiceDelta builds the opaque data portion of a service up/down
// publish: a bool followed by the length-prefixed provider address.
func EncodeServiceDelta(up bool, addr string) []byte {
	buf := bytebuf.New()
	w := serializer.NewWriter(buf)
	w.WriteBool(up)
	buf.WriteString(addr)
	return buf.Bytes()
}

// DecodeServiceDelta parses a service up/down publish's data payload.
func DecodeServiceDelta(data []byte) (up bool, addr string, err error) {
	buf := bytebuf.FromBytes(data)
	r := serializer.NewReader(buf)
	if up, err = r.ReadBool(); err != nil {
		return false, "", err
	}
	if addr, err = buf.ReadString(); err != nil {
		return false, "", err
	}
	return up, addr, nil
}
