package models

// CatalogEffect is one entry of the static effect catalog shown to users.
type CatalogEffect struct {
	Code        string `toml:"code"        json:"code"`
	Name        string `toml:"name"        json:"name"`
	Description string `toml:"description" json:"description"`
	Icon        string `toml:"icon"        json:"icon"`
}

// ExportPreset describes an output format target for the export stage.
type ExportPreset struct {
	ID          string `toml:"id"          json:"id"`
	Name        string `toml:"name"        json:"name"`
	AspectRatio string `toml:"aspect_ratio" json:"aspect_ratio"`
	Resolution  string `toml:"resolution"  json:"resolution"`
	Description string `toml:"description" json:"description"`
}
