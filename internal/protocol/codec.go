package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Encode validates a server message and serializes it
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s message: %w", m.MessageType(), err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", m.MessageType(), err)
	}
	return data, nil
}

type envelope struct {
	Type string `json:"type"`
	V    *int   `json:"v"`
}

// DecodeClient parses and validates a client message. The returned value is
// one of Subscribe, JoinQueue or LeaveQueue; failures are *Error values.
func DecodeClient(data []byte) (interface{}, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Errorf(CodeBadJSON, "message is not a JSON object")
	}
	if env.V == nil || *env.V != Version {
		return nil, Errorf(CodeUnsupportedVersion, "protocol version %d required", Version)
	}

	switch env.Type {
	case TypeSubscribe:
		var m Subscribe
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, Errorf(CodeBadJSON, "malformed subscribe: %v", err)
		}
		m.MatchID = strings.TrimSpace(m.MatchID)
		if m.MatchID == "" {
			return nil, Errorf(CodeInvalidField, "matchId is required")
		}
		return m, nil

	case TypeJoinQueue:
		var m JoinQueue
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, Errorf(CodeBadJSON, "malformed join_queue: %v", err)
		}
		m.AgentName = strings.TrimSpace(m.AgentName)
		if m.AgentName == "" || len(m.AgentName) > MaxAgentNameLen {
			return nil, Errorf(CodeInvalidField, "agentName must be 1-%d characters", MaxAgentNameLen)
		}
		if !IsStrategy(m.Strategy) {
			return nil, Errorf(CodeInvalidField, "unknown strategy %q", m.Strategy)
		}
		return m, nil

	case TypeLeaveQueue:
		var m LeaveQueue
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, Errorf(CodeBadJSON, "malformed leave_queue: %v", err)
		}
		return m, nil

	default:
		return nil, Errorf(CodeUnknownType, "unknown message type %q", env.Type)
	}
}

// DecodeServer parses a server message as seen by a client. Unknown types
// are reported as CodeUnknownType errors so clients can skip them. Every
// type except tick and leaderboard must carry the supported version.
func DecodeServer(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, Errorf(CodeBadJSON, "message is not a JSON object")
	}

	switch env.Type {
	case TypeTick, TypeLeaderboard:
	default:
		if env.V == nil || *env.V != Version {
			return nil, Errorf(CodeUnsupportedVersion, "protocol version %d required for %q", Version, env.Type)
		}
	}

	var m Message
	switch env.Type {
	case TypeHello:
		m = &Hello{}
	case TypeError:
		m = &ErrorMessage{}
	case TypeQueue:
		m = &Queue{}
	case TypeMatchStatus:
		m = &MatchStatus{}
	case TypeTick:
		m = &Tick{}
	case TypeLeaderboard:
		m = &Leaderboard{}
	case TypeMatchFinished:
		m = &MatchFinished{}
	default:
		return nil, Errorf(CodeUnknownType, "unknown message type %q", env.Type)
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, Errorf(CodeBadJSON, "malformed %s: %v", env.Type, err)
	}
	return m, nil
}
