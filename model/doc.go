// Package model defines stable boundary types for API layers.
//
// Ledger identity (record addresses and their contents) is unaffected by
// any projection. These structs are the only types intended for direct
// JSON serialization by consumers.
package model
