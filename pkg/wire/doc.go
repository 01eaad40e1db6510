// Package wire defines the CBOR wire format for transport control messages.
//
// Control messages establish or tear down interest in a topic and travel on
// the same framed stream as the topic's payload data. Every control message
// is wrapped in a Packet envelope whose Type field is the message-kind
// discriminator ("sub", "unsubscribe").
//
// # CBOR Integer Keys
//
// All maps use integer keys for compactness, as in the transport's other
// CBOR payloads. Encoding is deterministic (canonical key order), so equal
// messages always produce equal bytes.
//
// # Envelope
//
//	Packet {
//	  1: stamp,           // RFC 3339 time the envelope was built
//	  2: type,            // string discriminator
//	  3: serializedData   // CBOR-encoded body
//	}
package wire
