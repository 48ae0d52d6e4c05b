package msg

import (
	"encoding/json"
	"fmt"
)

// Record is a consumed Kafka record
type Record struct {
	Topic     string
	Key       string
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp int64
}

// DecodeJoin parses and validates a join command record. Malformed
// commands are wrapped in ErrPermanent.
func DecodeJoin(rec Record) (JoinCmdMsg, error) {
	var cmd JoinCmdMsg
	if err := json.Unmarshal(rec.Value, &cmd); err != nil {
		return JoinCmdMsg{}, fmt.Errorf("%w: decode join at offset %d: %v", ErrPermanent, rec.Offset, err)
	}
	if err := cmd.Validate(); err != nil {
		return JoinCmdMsg{}, fmt.Errorf("%w: invalid join at offset %d: %v", ErrPermanent, rec.Offset, err)
	}
	return cmd, nil
}

// DecodeTick parses a tick event record
func DecodeTick(rec Record) (TickEventMsg, error) {
	var ev TickEventMsg
	if err := json.Unmarshal(rec.Value, &ev); err != nil {
		return TickEventMsg{}, fmt.Errorf("%w: decode tick at offset %d: %v", ErrPermanent, rec.Offset, err)
	}
	if ev.MatchID == "" {
		return TickEventMsg{}, fmt.Errorf("%w: tick without match_id at offset %d", ErrPermanent, rec.Offset)
	}
	return ev, nil
}
