// Package realtime carries "something changed in household X" notifications
// from the data service to the state stores that need to refetch.
//
// Events carry no diff. A receiver reacts to each one with a full refetch.
package realtime

import (
	"context"
	"encoding/json"
	"time"
)

// Table names the collection that changed.
type Table string

const (
	TableExpenses Table = "expenses"
	TablePayments Table = "payments"
	TableMembers  Table = "household_members"
)

// Event signals that a collection of one household changed.
type Event struct {
	HouseholdID string    `json:"household_id"`
	Table       Table     `json:"table"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(householdID string, table Table) Event {
	return Event{
		HouseholdID: householdID,
		Table:       table,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event from JSON bytes.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher delivers change events to interested receivers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Discard is a Publisher that drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(context.Context, Event) error { return nil }
