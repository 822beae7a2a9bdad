package content

import "time"

type Source string

const (
	SourceUnknown Source = "unknown"
	SourceSeed    Source = "seed"
	SourceDisk    Source = "disk"
	SourceInline  Source = "inline"
)

// Meta describes where a Store's definitions came from.
type Meta struct {
	Version  string    `json:"version,omitempty"`
	SHA256   string    `json:"sha256,omitempty"`
	Source   Source    `json:"source,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}
