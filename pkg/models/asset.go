package models

import "github.com/google/uuid"

// MediaAsset is a user-supplied file accepted by intake validation.
// It is immutable once created and owned by the batch it was submitted with.
type MediaAsset struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	ByteSize    int64     `json:"byte_size"`
	MimeType    string    `json:"mime_type"`
	LocalHandle string    `json:"-"`
}

// AssetRef is a reference the remote provider can resolve, usually a URL.
type AssetRef string

// Effect is an opaque transformation code from the effect catalog.
type Effect struct {
	Code string `json:"code"`
}

// Artifact is a successfully produced output handed to the next workflow stage.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OutputRef string    `json:"output_ref"`
	Effect    string    `json:"effect"`
}
