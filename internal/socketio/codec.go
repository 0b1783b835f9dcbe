// Package socketio speaks the subset of Socket.IO v5 over Engine.IO v4
// WebSocket transport used by the live chat channel.
package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Event names of the chat channel
const (
	EventAIMessage  = "ai-message"
	EventAIResponse = "ai-response"
)

// EngineType is the Engine.IO packet type
type EngineType byte

const (
	EngineOpen    EngineType = '0'
	EngineClose   EngineType = '1'
	EnginePing    EngineType = '2'
	EnginePong    EngineType = '3'
	EngineMessage EngineType = '4'
	EngineUpgrade EngineType = '5'
	EngineNoop    EngineType = '6'
)

// SocketType is the Socket.IO packet type carried by an Engine.IO message
type SocketType byte

const (
	SocketConnect      SocketType = '0'
	SocketDisconnect   SocketType = '1'
	SocketEvent        SocketType = '2'
	SocketAck          SocketType = '3'
	SocketConnectError SocketType = '4'
)

// DefaultNamespace is the only namespace the chat channel uses
const DefaultNamespace = "/"

var ErrMalformedPacket = errors.New("malformed packet")

// Packet is a decoded Engine.IO frame, with the Socket.IO packet when it carries one
type Packet struct {
	Engine    EngineType
	Socket    SocketType
	Namespace string
	AckID     int
	Event     string
	// Data is the raw payload: open/connect JSON, or the event's first argument
	Data json.RawMessage
}

// OpenPayload is sent by the server in the Engine.IO open packet
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload,omitempty"`
}

// ChatEvent is the payload of ai-message and ai-response
type ChatEvent struct {
	Content string `json:"content"`
	Chat    string `json:"chat"`
}

// Decode parses one text frame
func Decode(frame []byte) (Packet, error) {
	if len(frame) == 0 {
		return Packet{}, ErrMalformedPacket
	}

	p := Packet{Engine: EngineType(frame[0]), Namespace: DefaultNamespace, AckID: -1}
	rest := frame[1:]

	switch p.Engine {
	case EngineOpen, EngineClose, EnginePing, EnginePong, EngineUpgrade, EngineNoop:
		p.Data = json.RawMessage(rest)
		return p, nil
	case EngineMessage:
	default:
		return Packet{}, fmt.Errorf("%w: engine type %q", ErrMalformedPacket, frame[0])
	}

	if len(rest) == 0 {
		return Packet{}, fmt.Errorf("%w: empty message", ErrMalformedPacket)
	}
	p.Socket = SocketType(rest[0])
	rest = rest[1:]

	if len(rest) > 0 && rest[0] == '/' {
		end := bytes.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = string(rest)
			rest = nil
		} else {
			p.Namespace = string(rest[:end])
			rest = rest[end+1:]
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.Atoi(string(rest[:digits]))
		if err != nil {
			return Packet{}, fmt.Errorf("%w: ack id: %v", ErrMalformedPacket, err)
		}
		p.AckID = id
		rest = rest[digits:]
	}

	switch p.Socket {
	case SocketEvent, SocketAck:
		if len(rest) == 0 {
			return Packet{}, fmt.Errorf("%w: event without data", ErrMalformedPacket)
		}
		var args []json.RawMessage
		if err := json.Unmarshal(rest, &args); err != nil {
			return Packet{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
		}
		if p.Socket == SocketEvent {
			if len(args) == 0 {
				return Packet{}, fmt.Errorf("%w: event without name", ErrMalformedPacket)
			}
			if err := json.Unmarshal(args[0], &p.Event); err != nil {
				return Packet{}, fmt.Errorf("%w: event name: %v", ErrMalformedPacket, err)
			}
			args = args[1:]
		}
		if len(args) > 0 {
			p.Data = args[0]
		}
	case SocketConnect, SocketDisconnect, SocketConnectError:
		if len(rest) > 0 {
			p.Data = json.RawMessage(rest)
		}
	default:
		return Packet{}, fmt.Errorf("%w: socket type %q", ErrMalformedPacket, byte(p.Socket))
	}

	return p, nil
}

// EncodeEvent builds a 42["event",payload] frame on the default namespace
func EncodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal([]any{event, payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %s: %w", event, err)
	}
	return append([]byte{byte(EngineMessage), byte(SocketEvent)}, data...), nil
}

// EncodeOpen builds the Engine.IO open frame
func EncodeOpen(payload OpenPayload) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode open packet: %w", err)
	}
	return append([]byte{byte(EngineOpen)}, data...), nil
}

// EncodeConnect builds a namespace connect frame. A non-empty sid makes it the server ack.
func EncodeConnect(sid string) []byte {
	frame := []byte{byte(EngineMessage), byte(SocketConnect)}
	if sid == "" {
		return frame
	}
	data, _ := json.Marshal(map[string]string{"sid": sid})
	return append(frame, data...)
}

// EncodeConnectError builds a namespace connect error frame
func EncodeConnectError(message string) []byte {
	data, _ := json.Marshal(map[string]string{"message": message})
	return append([]byte{byte(EngineMessage), byte(SocketConnectError)}, data...)
}

// Control frames
var (
	FramePing       = []byte{byte(EnginePing)}
	FramePong       = []byte{byte(EnginePong)}
	FrameClose      = []byte{byte(EngineClose)}
	FrameDisconnect = []byte{byte(EngineMessage), byte(SocketDisconnect)}
)
