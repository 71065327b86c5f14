package lifecycle

import (
	"fmt"
)

// Status is the lifecycle state of a single order item
type Status string

// Item statuses
const (
	StatusPending        Status = "pending"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusReturned       Status = "returned"
	StatusRefunded       Status = "refunded"
	StatusRefundRejected Status = "refund_rejected"
)

type statusInfo struct {
	label    string
	terminal bool
}

// statusTable must carry one entry per status; TestStatusTableComplete guards it.
var statusTable = map[Status]statusInfo{
	StatusPending:        {label: "Pending"},
	StatusDelivered:      {label: "Delivered"},
	StatusCancelled:      {label: "Cancelled"},
	StatusReturned:       {label: "Return/Cancel Requested"},
	StatusRefunded:       {label: "Refunded", terminal: true},
	StatusRefundRejected: {label: "Refund Rejected", terminal: true},
}

// Statuses returns every status in lifecycle order
func Statuses() []Status {
	return []Status{
		StatusPending,
		StatusDelivered,
		StatusCancelled,
		StatusReturned,
		StatusRefunded,
		StatusRefundRejected,
	}
}

// ParseStatus converts a wire value into a Status
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusTable[st]; !ok {
		return "", fmt.Errorf("unknown item status %q", s)
	}
	return st, nil
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further action can be taken on the item
func (s Status) IsTerminal() bool {
	return statusTable[s].terminal
}

// Label returns the display text for an item in this status. Seller-side
// cancellations read differently from buyer-initiated ones.
func (s Status) Label(cancelledBySeller bool) string {
	switch s {
	case StatusCancelled, StatusReturned:
		if cancelledBySeller {
			return "Cancelled by Seller"
		}
	}
	if info, ok := statusTable[s]; ok {
		return info.label
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown item status %q", string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Scan implements sql.Scanner so statuses can be read straight from the store
func (s *Status) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
}
