// Package domain defines the persisted entities of the point-of-sale engine,
// their enumerations, the timestamp format used in records, and the error
// taxonomy shared by every component.
//
// All money amounts are int64 values in the smallest currency unit. Records
// are serialized as JSON objects with snake_case keys; optional fields use
// pointers and are omitted when unset.
package domain
