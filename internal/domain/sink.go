package domain

// SinkDescriptor catalogues one data sink: where it lives, how to
// connect, and which capability executes queries against it. The
// connection reference is opaque to everything but the matching
// adapter.
type SinkDescriptor struct {
	SinkID              string         `json:"sink_id"`
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	SinkType            string         `json:"sink_type"`
	ConnectionRef       map[string]any `json:"connection_ref"`
	SchemaDefinition    any            `json:"schema_definition,omitempty"`
	QueryCapabilityRef  string         `json:"query_capability_ref,omitempty"`
	SchemaCapabilityRef string         `json:"schema_capability_ref,omitempty"`
}

// SinkStore is the persistent sink catalogue. Get misses are values
// (nil, nil); non-nil errors mean the store itself failed.
type SinkStore interface {
	Register(sink SinkDescriptor) error
	Get(sinkID string) (*SinkDescriptor, error)
	List() ([]SinkDescriptor, error)
	Delete(sinkID string) (bool, error)
}
