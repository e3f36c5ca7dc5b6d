// Package parambus defines the boundary between the protocol translator and
// the local hierarchical parameter bus: typed get/set, wildcard expansion,
// table row CRUD, attribute access, event subscription, and atomic
// compare-and-set.
package parambus

import (
	"context"

	"github.com/c360/webpa-gateway/codec"
)

// Access describes the read/write permission attached to a parameter.
type Access int

const (
	AccessReadOnly Access = iota
	AccessReadWrite
	AccessWriteOnly
)

// String renders the wire name used in the SET_ATTRIBUTES/attributes JSON.
func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "readOnly"
	case AccessReadWrite:
		return "readWrite"
	case AccessWriteOnly:
		return "writeOnly"
	default:
		return "readOnly"
	}
}

// ParseAccess parses the wire access string; an empty or unrecognized
// string defaults to AccessReadWrite, matching a component with no explicit
// access policy.
func ParseAccess(s string) Access {
	switch s {
	case "readOnly":
		return AccessReadOnly
	case "writeOnly":
		return AccessWriteOnly
	case "readWrite", "":
		return AccessReadWrite
	default:
		return AccessReadWrite
	}
}

// Attribute is the (notify, access) pair attached to a parameter.
type Attribute struct {
	Notify int // 0 off, 1 on
	Access Access
}

// RowParam is one (name, value, type) triple within a table row.
type RowParam struct {
	Name  string
	Value string
	Type  codec.WireType
}

// EventCategory distinguishes parambus event kinds delivered to
// subscribers.
type EventCategory int

const (
	CategoryValueChange EventCategory = iota
	CategoryObjectCreated
	CategoryObjectDeleted
)

// Event is a single parambus callback delivery: a value change or a
// table-object lifecycle event.
type Event struct {
	Name     string // parameter or table path the event concerns
	Category EventCategory
	NewValue string
	Type     codec.WireType
	WriteID  string            // present if the origin supplied one
	Meta     map[string]string // raw event metadata (component, instance id, ...)
}

// EventCallback is invoked on the parambus's own callback goroutine. It
// must never call back into the Bus synchronously, to avoid re-entrancy
// through the bus library (see design notes on event/cache coordination).
type EventCallback func(Event)

// Bus is the parambus adapter contract. Every operation returns success or
// a typed error (see the errors package Kind taxonomy); callers should use
// errors.ClassifyKind(err) rather than string matching.
type Bus interface {
	// Open establishes the bus handle for component. At most one handle is
	// held per process.
	Open(ctx context.Context, component string) error
	// Close releases the bus handle.
	Close(ctx context.Context) error

	// Get returns the string rendering of name.
	Get(ctx context.Context, name string) (string, error)
	// GetTyped returns the string rendering and wire type of name.
	GetTyped(ctx context.Context, name string) (codec.TypedValue, error)
	// Set writes value as a string; the bus performs coercion or rejects.
	Set(ctx context.Context, name, value string) error
	// SetTyped writes a typed value, selecting the bus setter for the wire
	// type.
	SetTyped(ctx context.Context, name string, value codec.TypedValue) error

	// ExpandWildcard enumerates fully-qualified names under prefix, which
	// must end in '.'. An empty result is not an error.
	ExpandWildcard(ctx context.Context, prefix string) ([]string, error)

	// AddTableRow allocates a new row under tablePath and sets each
	// supplied row parameter, returning the composed row path
	// (<tablePath><n>.). Partial-set failures are reported but the
	// allocation is not undone; rollback on atomic contexts is the
	// Transaction Engine's responsibility.
	AddTableRow(ctx context.Context, tablePath string, row []RowParam) (string, error)
	// DeleteTableRow removes the row at rowPath.
	DeleteTableRow(ctx context.Context, rowPath string) error
	// ReplaceTable enumerates existing rows, deletes each, then adds each
	// of rows. Not atomic at the bus level.
	ReplaceTable(ctx context.Context, tablePath string, rows [][]RowParam) error

	GetAttributes(ctx context.Context, name string) (Attribute, error)
	SetAttributes(ctx context.Context, name string, attr Attribute) error

	// Subscribe registers cb against eventName, refcounted: only the first
	// subscribe for a given name registers with the bus.
	Subscribe(ctx context.Context, eventName string, cb EventCallback) error
	// Unsubscribe decrements the refcount for eventName; the bus
	// registration is released on the last unsubscribe.
	Unsubscribe(ctx context.Context, eventName string) error

	// TestAndSet atomically (at the adapter layer) compares the current
	// value of name, rendered under wireType's canonical encoding, against
	// expected, and sets newValue iff equal. A mismatch returns an error
	// classified errors.KindPreconditionFailed.
	TestAndSet(ctx context.Context, name, expected, newValue string, wireType codec.WireType) error
}
