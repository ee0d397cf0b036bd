// Package protocol defines the notebook kernel wire protocol.
//
// Every frame in both directions is a single JSON object with a string
// "type" discriminator. Outbound frames are Commands, inbound frames are
// Events. Both are closed sets: the unexported marker methods keep other
// packages from adding variants, so the dispatcher's type switch covers
// every kind that can be decoded.
//
// There is no request/response correlation id. Replies are matched by
// event kind and by business keys carried in the payload (cellId).
package protocol
