// Package notify delivers ledger events to external systems after the
// mutation that produced them has committed.
package notify

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Event types.
const (
	ExpenseAdded       = "expense.added"
	ExpenseUpdated     = "expense.updated"
	ExpenseDeleted     = "expense.deleted"
	SettlementRecorded = "settlement.recorded"
)

// Event is one committed ledger change.
type Event struct {
	// Type is one of the event type constants (e.g., "expense.added").
	Type string

	// GroupID is the group whose balances changed.
	GroupID string

	// SubjectID is the expense or settlement the event is about.
	SubjectID string

	// Actor is the member who triggered the change, when known.
	Actor string

	// Recipients are the members who should hear about the change.
	Recipients []string

	// OccurredAt is the Unix timestamp of the commit.
	OccurredAt int64

	// Data carries event-specific fields. Values must be representable by
	// structpb: strings, numbers, bools, nil, []any and map[string]any.
	Data map[string]any
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, groupID, subjectID, actor string, recipients []string, data map[string]any) Event {
	return Event{
		Type:       eventType,
		GroupID:    groupID,
		SubjectID:  subjectID,
		Actor:      actor,
		Recipients: append([]string(nil), recipients...),
		OccurredAt: time.Now().Unix(),
		Data:       data,
	}
}

// Struct converts the event into a protobuf Struct envelope.
func (e Event) Struct() (*structpb.Struct, error) {
	data := e.Data
	if data == nil {
		data = map[string]any{}
	}
	recipients := make([]any, len(e.Recipients))
	for i, r := range e.Recipients {
		recipients[i] = r
	}
	s, err := structpb.NewStruct(map[string]any{
		"type":        e.Type,
		"group_id":    e.GroupID,
		"subject_id":  e.SubjectID,
		"actor":       e.Actor,
		"recipients":  recipients,
		"occurred_at": e.OccurredAt,
		"data":        data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event payload: %w", err)
	}
	return s, nil
}

// MarshalJSON renders the envelope with protojson.
func (e Event) MarshalJSON() ([]byte, error) {
	s, err := e.Struct()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

// MarshalProto renders the envelope in protobuf wire format.
func (e Event) MarshalProto() ([]byte, error) {
	s, err := e.Struct()
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// Notifier delivers a single event. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}
