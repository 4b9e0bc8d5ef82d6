// Package jsonapi provides wire-level document types for JSON:API requests
// and responses, including the Atomic Operations extension.
//
// This package contains type definitions and small helpers only. All other
// internal packages import jsonapi; jsonapi imports nothing internal. This
// keeps the wire layer foundational with no circular dependencies.
//
// Key design constraints:
//   - Presence-sensitive members (id, lid, data) use pointers or RawMessage
//     so "absent" and "null" stay distinguishable after decoding
//   - All JSON tags follow the member names of the JSON:API specification
//   - Decoding and encoding go through goccy/go-json
package jsonapi
