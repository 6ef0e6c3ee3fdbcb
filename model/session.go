package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// EventType 服务端推送的消息类型
type EventType string

const (
	EventUpdate EventType = "update" // 切歌 / 当前曲目
	EventAck    EventType = "ack"    // 对客户端命令的确认，也用于推送状态
	EventMsg    EventType = "msg"    // 纯展示消息
)

// AckKey ack 消息与客户端命令共用的键
type AckKey string

const (
	KeyVersion AckKey = "version"
	KeyPending AckKey = "pending"
	KeyNext    AckKey = "next"
	KeyScore   AckKey = "score"
	KeyTime    AckKey = "time"
)

// ErrUnknownEvent is returned by DecodeEvent for a type it does not know.
var ErrUnknownEvent = errors.New("unknown event type")

// Event is one inbound session message. Exactly one of Track, Ack or Message
// is set, matching Type.
type Event struct {
	Type    EventType
	Track   *Track
	Ack     *Ack
	Message string
}

// Ack carries an acknowledged key and its raw value.
type Ack struct {
	Key   AckKey          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Float returns the ack value as a number. Quoted numbers are accepted since
// some server builds send the version as a string.
func (a *Ack) Float() (float64, error) {
	var f float64
	if err := json.Unmarshal(a.Value, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(a.Value, &s); err != nil {
		return 0, fmt.Errorf("ack %s: value %s is not a number", a.Key, string(a.Value))
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("ack %s: %w", a.Key, err)
	}
	return f, nil
}

// String returns the ack value as text.
func (a *Ack) String() string {
	var s string
	if err := json.Unmarshal(a.Value, &s); err == nil {
		return s
	}
	return string(a.Value)
}

type envelope struct {
	Type  EventType       `json:"type"`
	Key   AckKey          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// DecodeEvent parses one JSON frame from the session channel.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case EventUpdate:
		var t Track
		if err := json.Unmarshal(data, &t); err != nil {
			return Event{}, fmt.Errorf("decode update: %w", err)
		}
		if t.ID == "" {
			return Event{}, errors.New("decode update: missing id")
		}
		return Event{Type: EventUpdate, Track: &t}, nil
	case EventAck:
		return Event{Type: EventAck, Ack: &Ack{Key: env.Key, Value: env.Value}}, nil
	case EventMsg:
		var msg string
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			msg = string(env.Value)
		}
		return Event{Type: EventMsg, Message: msg}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

// Command is an outbound client request, serialized as a flat
// {"key": ..., "value": ...} object.
type Command struct {
	Key   AckKey  `json:"key"`
	Value float64 `json:"value"`
}

// Encode marshals the command for the wire.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}
