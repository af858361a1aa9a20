package domain

type PipelineID string

// Pipeline is an encoder pipeline definition found on disk. Name is the
// namespaced name ("<namespace>/<file>") the ID is derived from.
type Pipeline struct {
	ID   PipelineID
	Name string
	Path string
}

// PipelineEntry is the wire form of one pipeline in a listing.
type PipelineEntry struct {
	Name string `json:"name"`
}
