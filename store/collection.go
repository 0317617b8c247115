package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Collection is the ordered list of texts held in one store file.
type Collection []TextItem

// decodeCollection parses a JSON array of texts. A JSON null yields an empty collection.
func decodeCollection(data []byte) (Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode texts: %w", err)
	}
	if c == nil {
		c = Collection{}
	}
	return c, nil
}

// encode serializes the collection as a compact JSON array. HTML characters
// are written as is and there is no trailing newline.
func (c Collection) encode() ([]byte, error) {
	if c == nil {
		c = Collection{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode texts: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// nextID returns one past the largest id, or 1 for an empty collection.
func (c Collection) nextID() (uint64, error) {
	var top uint64
	for _, t := range c {
		if t.ID > top {
			top = t.ID
		}
	}
	if top == math.MaxUint64 {
		return 0, ErrIDSpaceExhausted
	}
	return top + 1, nil
}

// index returns the position of the first text with id, or -1.
func (c Collection) index(id uint64) int {
	for i, t := range c {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// add appends a new text stamped with now.
func (c Collection) add(content string, now time.Time) (Collection, TextItem, error) {
	id, err := c.nextID()
	if err != nil {
		return c, TextItem{}, err
	}
	item := TextItem{
		ID:        id,
		Content:   content,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
	}
	return append(c, item), item, nil
}

// update replaces the content of the text with id. Id and CreatedAt are kept.
func (c Collection) update(id uint64, content string) (Collection, TextItem, error) {
	i := c.index(id)
	if i < 0 {
		return c, TextItem{}, ErrNotFound
	}
	c[i].Content = content
	return c, c[i], nil
}

// remove drops every text with id and reports whether anything was dropped.
func (c Collection) remove(id uint64) (Collection, bool) {
	kept := c[:0]
	for _, t := range c {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	return kept, len(kept) != len(c)
}
