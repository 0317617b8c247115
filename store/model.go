package store

// TextItem is a single persisted note.
type TextItem struct {
	ID        uint64 `json:"id" yaml:"id"`
	Content   string `json:"content" yaml:"content"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}
