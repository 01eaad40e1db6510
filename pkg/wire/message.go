package wire

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Message kinds carried in Packet.Type.
const (
	// KindSubscribe announces a subscriber to a publisher or master.
	KindSubscribe = "sub"

	// KindUnsubscribe withdraws a previously announced subscriber.
	KindUnsubscribe = "unsubscribe"
)

// Validation errors.
var (
	ErrEmptyTopic   = errors.New("topic is empty")
	ErrEmptyMsgType = errors.New("message type is empty")
	ErrEmptyKind    = errors.New("packet type is empty")
)

// Subscribe describes one subscriber endpoint of a topic.
// The same descriptor is used for subscribe and unsubscribe messages.
//
// CBOR encoding:
//
//	{
//	  1: topic,    // string
//	  2: msgType,  // string
//	  3: host,     // string: local address of the subscriber's connection
//	  4: port      // uint16: local port of the subscriber's connection
//	}
type Subscribe struct {
	Topic   string `cbor:"1,keyasint"`
	MsgType string `cbor:"2,keyasint"`
	Host    string `cbor:"3,keyasint,omitempty"`
	Port    uint16 `cbor:"4,keyasint,omitempty"`
}

// Validate checks that the descriptor names a topic and a message type.
func (s *Subscribe) Validate() error {
	if s.Topic == "" {
		return ErrEmptyTopic
	}
	if s.MsgType == "" {
		return ErrEmptyMsgType
	}
	return nil
}

// Address returns host:port of the subscriber.
func (s Subscribe) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// String returns a compact representation for logs.
func (s Subscribe) String() string {
	return fmt.Sprintf("%s[%s]@%s", s.Topic, s.MsgType, s.Address())
}

// Packet is the envelope for every control message.
type Packet struct {
	Stamp          time.Time `cbor:"1,keyasint"`
	Type           string    `cbor:"2,keyasint"`
	SerializedData []byte    `cbor:"3,keyasint,omitempty"`
}

// Validate checks that the packet carries a kind discriminator.
func (p *Packet) Validate() error {
	if p.Type == "" {
		return ErrEmptyKind
	}
	return nil
}
