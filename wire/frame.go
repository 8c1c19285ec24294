// File: wire/frame.go
// Package wire implements a fixed-header framed RPC protocol: an 11-byte
// header (magic, version, message-type, sequence-id, content-length)
// followed by an opaque payload.
//
// Grounded on core/protocol/frame_codec.go's WebSocket frame codec (fixed
// leading bytes, big-endian extended-length fields, explicit truncation
// checks) adapted from a variable-width WS header to a fixed 11-byte RPC
// header and message-type enumeration.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic is the fixed first header byte.
const Magic = 0xCC

// Version is the current protocol version byte.
const Version = 0x01

// HeaderLen is the fixed wire header size, in bytes.
const HeaderLen = 11

// MessageType is the single-byte frame discriminator.
type MessageType uint8

// Message-type values are 0-indexed: a heartbeat frame's type byte is
// 0x00, and a provider announcement's is 0x01.
const (
	HeartbeatPacket MessageType = iota
	RPCProvider
	RPCConsumer
	RPCRequest
	RPCResponse
	RPCMethodRequest
	RPCMethodResponse
	RPCServiceRegister
	RPCServiceRegisterResponse
	RPCServiceDiscover
	RPCServiceDiscoverResponse
	RPCSubscribeRequest
	RPCSubscribeResponse
	RPCPublishRequest
	RPCPublishResponse
)

func (t MessageType) String() string {
	switch t {
	case HeartbeatPacket:
		return "HEARTBEAT_PACKET"
	case RPCProvider:
		return "RPC_PROVIDER"
	case RPCConsumer:
		return "RPC_CONSUMER"
	case RPCRequest:
		return "RPC_REQUEST"
	case RPCResponse:
		return "RPC_RESPONSE"
	case RPCMethodRequest:
		return "RPC_METHOD_REQUEST"
	case RPCMethodResponse:
		return "RPC_METHOD_RESPONSE"
	case RPCServiceRegister:
		return "RPC_SERVICE_REGISTER"
	case RPCServiceRegisterResponse:
		return "RPC_SERVICE_REGISTER_RESPONSE"
	case RPCServiceDiscover:
		return "RPC_SERVICE_DISCOVER"
	case RPCServiceDiscoverResponse:
		return "RPC_SERVICE_DISCOVER_RESPONSE"
	case RPCSubscribeRequest:
		return "RPC_SUBSCRIBE_REQUEST"
	case RPCSubscribeResponse:
		return "RPC_SUBSCRIBE_RESPONSE"
	case RPCPublishRequest:
		return "RPC_PUBLISH_REQUEST"
	case RPCPublishResponse:
		return "RPC_PUBLISH_RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// ErrMagicMismatch is returned when a frame's leading byte is not Magic;
// this closes the owning session.
var ErrMagicMismatch = errors.New("wire: magic byte mismatch")

// ErrTruncatedHeader is returned when fewer than HeaderLen bytes are
// available to parse a header, and by Decode when fewer payload bytes
// follow the header than it declares.
var ErrTruncatedHeader = errors.New("wire: truncated header")

// Frame is one parsed message: a fixed header plus its opaque payload.
type Frame struct {
	Type       MessageType
	SequenceID uint32
	Payload    []byte
}

// FireAndForgetSeq is the reserved sequence id for frames with no matching
// caller (heartbeats, registrations, publishes, unsolicited messages).
const FireAndForgetSeq uint32 = 0

// Encode serializes f into its wire form: 11-byte header + payload.
func Encode(f Frame) []byte {
	buf := make([]byte, HeaderLen+len(f.Payload))
	buf[0] = Magic
	buf[1] = Version
	buf[2] = byte(f.Type)
	binary.BigEndian.PutUint32(buf[3:7], f.SequenceID)
	binary.BigEndian.PutUint32(buf[7:11], uint32(len(f.Payload)))
	copy(buf[HeaderLen:], f.Payload)
	return buf
}

// DecodeHeader parses the fixed 11-byte header from the front of raw,
// returning the parsed fields and the declared payload length. It does not
// require the payload itself to be present yet — callers read exactly
// HeaderLen bytes first, then contentLength more.
func DecodeHeader(raw []byte) (msgType MessageType, seq uint32, contentLength uint32, err error) {
	if len(raw) < HeaderLen {
		return 0, 0, 0, ErrTruncatedHeader
	}
	if raw[0] != Magic {
		return 0, 0, 0, ErrMagicMismatch
	}
	msgType = MessageType(raw[2])
	seq = binary.BigEndian.Uint32(raw[3:7])
	contentLength = binary.BigEndian.Uint32(raw[7:11])
	return msgType, seq, contentLength, nil
}

// Decode parses a complete frame (header + payload) out of raw, returning
// the frame and the number of bytes consumed.
func Decode(raw []byte) (Frame, int, error) {
	msgType, seq, contentLength, err := DecodeHeader(raw)
	if err != nil {
		return Frame{}, 0, err
	}
	total := HeaderLen + int(contentLength)
	if len(raw) < total {
		return Frame{}, 0, ErrTruncatedHeader
	}
	payload := make([]byte, contentLength)
	copy(payload, raw[HeaderLen:total])
	return Frame{Type: msgType, SequenceID: seq, Payload: payload}, total, nil
}

// Heartbeat builds the canonical zero-payload keep-alive frame.
func Heartbeat() Frame {
	return Frame{Type: HeartbeatPacket, SequenceID: FireAndForgetSeq}
}
