package wire

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Control envelopes are encoded canonically so that equal descriptors
// produce equal bytes. Decoding tolerates indefinite lengths and
// duplicate keys from older peers.
var (
	encMode = must(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode())

	decMode = must(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode())
)

// now is replaced in tests that need a fixed envelope stamp.
var now = time.Now

func must[M any](mode M, err error) M {
	if err != nil {
		panic(fmt.Sprintf("wire: cbor mode: %v", err))
	}
	return mode
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Package serializes msg and wraps it in a Packet envelope tagged with kind.
// The returned bytes are ready to be written as one frame.
func Package(kind string, msg any) ([]byte, error) {
	body, err := Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s body: %w", kind, err)
	}

	pkt := Packet{
		Stamp:          now().UTC(),
		Type:           kind,
		SerializedData: body,
	}
	if err := pkt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid packet: %w", err)
	}
	return Marshal(&pkt)
}

// EncodeSubscribe packages a subscribe descriptor under the given kind.
func EncodeSubscribe(kind string, sub *Subscribe) ([]byte, error) {
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("invalid subscribe: %w", err)
	}
	return Package(kind, sub)
}

// DecodePacket decodes CBOR bytes into a Packet envelope.
func DecodePacket(data []byte) (*Packet, error) {
	var pkt Packet
	if err := Unmarshal(data, &pkt); err != nil {
		return nil, fmt.Errorf("failed to decode packet: %w", err)
	}
	if err := pkt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid packet: %w", err)
	}
	return &pkt, nil
}

// DecodeSubscribe decodes the body of a subscribe or unsubscribe packet.
func DecodeSubscribe(pkt *Packet) (*Subscribe, error) {
	if pkt.Type != KindSubscribe && pkt.Type != KindUnsubscribe {
		return nil, fmt.Errorf("not a subscribe packet: type=%q", pkt.Type)
	}
	var sub Subscribe
	if err := Unmarshal(pkt.SerializedData, &sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscribe: %w", err)
	}
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("invalid subscribe: %w", err)
	}
	return &sub, nil
}

// PeekKind returns the kind discriminator of an encoded packet
// without decoding its body.
func PeekKind(data []byte) (string, error) {
	var peek struct {
		Type string `cbor:"2,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return "", fmt.Errorf("failed to peek packet: %w", err)
	}
	if peek.Type == "" {
		return "", ErrEmptyKind
	}
	return peek.Type, nil
}
