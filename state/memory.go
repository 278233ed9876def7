package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryCollection is an in-process Collection used by tests and by the
// server when no database is configured. Contents do not survive restarts.
type MemoryCollection struct {
	mu   sync.RWMutex
	name string
	seq  int64
	docs map[string]Document
	now  func() time.Time
}

func NewMemoryCollection(name string) *MemoryCollection {
	return &MemoryCollection{
		name: name,
		docs: make(map[string]Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (c *MemoryCollection) Insert(ctx context.Context, body []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if !json.Valid(body) {
		return Document{}, errors.New("state: document body must be valid JSON")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	now := c.now()
	doc := Document{
		ID:         newDocumentID(),
		Collection: c.name,
		Seq:        c.seq,
		Body:       append(json.RawMessage(nil), body...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c.docs[doc.ID] = doc
	return cloneDocument(doc), nil
}

func (c *MemoryCollection) FindByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	canonical, ok := canonicalID(id)
	if !ok {
		return Document{}, c.notFound(id)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[canonical]
	if !ok {
		return Document{}, c.notFound(id)
	}
	return cloneDocument(doc), nil
}

func (c *MemoryCollection) FindAll(ctx context.Context, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Document, 0, len(c.docs))
	for _, doc := range c.docs {
		out = append(out, cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *MemoryCollection) Replace(ctx context.Context, id string, body []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if !json.Valid(body) {
		return Document{}, errors.New("state: document body must be valid JSON")
	}
	canonical, ok := canonicalID(id)
	if !ok {
		return Document{}, c.notFound(id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[canonical]
	if !ok {
		return Document{}, c.notFound(id)
	}
	doc.Body = append(json.RawMessage(nil), body...)
	doc.UpdatedAt = c.now()
	c.docs[canonical] = doc
	return cloneDocument(doc), nil
}

func (c *MemoryCollection) RemoveByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	canonical, ok := canonicalID(id)
	if !ok {
		return Document{}, c.notFound(id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[canonical]
	if !ok {
		return Document{}, c.notFound(id)
	}
	delete(c.docs, canonical)
	return doc, nil
}

// Len reports the number of stored documents.
func (c *MemoryCollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *MemoryCollection) notFound(id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
}

func cloneDocument(doc Document) Document {
	doc.Body = append(json.RawMessage(nil), doc.Body...)
	return doc
}
