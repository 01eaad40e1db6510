// Package topic tracks the topics a process knows about and the message
// type each carries.
//
// A topic is bound to exactly one message type for the lifetime of the
// Manager: the first UpdatePublications call fixes it, and later calls for
// the same topic must name the same type. Interest is reference counted so
// a topic stays known while any endpoint has registered it.
package topic
