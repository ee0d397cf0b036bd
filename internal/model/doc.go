// Package model defines shared data types used across the notebook client.
//
// Conventions:
//   - IDs: opaque strings; session and cell IDs are generated client-side as UUIDv4
//   - Cell order is significant: slice order is display and execution order
//   - Timestamps from the HTTP backend are kept as RFC 3339 strings, as delivered
package model
