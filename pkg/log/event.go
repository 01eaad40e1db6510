package log

import "time"

// Event is one protocol log record. Exactly one payload pointer is set.
// Integer CBOR keys keep the .glog records small.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID is the UUID of the connection, empty for endpoint
	// events raised while no connection is held.
	ConnectionID string    `cbor:"2,keyasint"`
	Direction    Direction `cbor:"3,keyasint"`
	Layer        Layer     `cbor:"4,keyasint"`
	Category     Category  `cbor:"5,keyasint"`
	LocalRole    Role      `cbor:"6,keyasint,omitempty"`
	RemoteAddr   string    `cbor:"7,keyasint,omitempty"`
	Topic        string    `cbor:"8,keyasint,omitempty"`
	EndpointID   uint64    `cbor:"9,keyasint,omitempty"`

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Control     *ControlEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

// label maps a small enum value to its name, "UNKNOWN" when out of range.
func label(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "UNKNOWN"
}

// Direction is the flow of a message relative to the local process.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

func (d Direction) String() string { return label([]string{"IN", "OUT"}, uint8(d)) }

// Layer is where an event was captured.
type Layer uint8

const (
	// LayerTransport sees raw frames.
	LayerTransport Layer = iota
	// LayerWire sees decoded subscribe and unsubscribe envelopes.
	LayerWire
	// LayerSubscription sees endpoint lifecycle.
	LayerSubscription
)

func (l Layer) String() string {
	return label([]string{"TRANSPORT", "WIRE", "SUBSCRIPTION"}, uint8(l))
}

// Category classifies an event.
type Category uint8

const (
	CategoryMessage Category = iota
	CategoryControl
	CategoryState
	CategoryError
)

func (c Category) String() string {
	return label([]string{"MESSAGE", "CONTROL", "STATE", "ERROR"}, uint8(c))
}

// Role is the side of a topic the local process is on.
type Role uint8

const (
	RoleSubscriber Role = iota
	RolePublisher
)

func (r Role) String() string { return label([]string{"SUBSCRIBER", "PUBLISHER"}, uint8(r)) }

// FrameEvent records one length-prefixed frame.
type FrameEvent struct {
	// Size counts the frame including its 4 byte prefix.
	Size int `cbor:"1,keyasint"`

	// Data holds at most transport.MaxLoggedPayload bytes of the payload.
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// ControlEvent records a subscribe ("sub") or "unsubscribe" announcement.
// Host and Port are the subscriber's end of the connection.
type ControlEvent struct {
	Kind    string `cbor:"1,keyasint"`
	MsgType string `cbor:"2,keyasint,omitempty"`
	Host    string `cbor:"3,keyasint,omitempty"`
	Port    uint16 `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent records a lifecycle transition. OldState is empty for
// the first transition of an entity.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity is the kind of object whose state changed.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntitySubscription
)

func (s StateEntity) String() string {
	return label([]string{"CONNECTION", "SUBSCRIPTION"}, uint8(s))
}

// ErrorEventData records a failure. Context names the operation that
// failed, such as "read" or "init".
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Context string `cbor:"4,keyasint,omitempty"`
}
