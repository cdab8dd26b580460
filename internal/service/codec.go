package service

import "encoding/json"

// Codec carries the LedgerService messages as JSON. The messages are plain
// Go structs, so it replaces Connect's protobuf-only "json" codec for both
// handlers and clients.
type Codec struct{}

// Name implements connect.Codec.
func (Codec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) { return json.Marshal(msg) }

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error { return json.Unmarshal(data, msg) }
