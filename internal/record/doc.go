// Package record defines the persisted record types of kindred.
//
// This package contains type definitions, validation and normalization only.
// All other internal packages import record; record imports nothing internal.
//
// Key design constraints:
//   - Every record carries a string identifier that never changes once created
//   - History items reference at most one owner (contact or holiday)
//   - Text fields are NFC-normalized before they reach a store
//   - All JSON tags and db tags use snake_case
package record
