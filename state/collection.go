package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection stores JSON documents of one kind in the shared documents table.
type Collection struct {
	db   *sql.DB
	name string
}

// Insert persists body as a new document and returns it with its assigned id.
func (c *Collection) Insert(ctx context.Context, body []byte) (Document, error) {
	if !json.Valid(body) {
		return Document{}, errors.New("state: document body must be valid JSON")
	}

	doc := Document{
		ID:         newDocumentID(),
		Collection: c.name,
		Body:       append(json.RawMessage(nil), body...),
	}
	err := c.db.QueryRowContext(ctx, `
INSERT INTO documents (id, collection, body)
VALUES ($1, $2, $3)
RETURNING seq, created_at, updated_at
`, doc.ID, doc.Collection, []byte(doc.Body)).Scan(&doc.Seq, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("insert %s document: %w", c.name, err)
	}
	return doc, nil
}

// FindByID returns a single document by id.
func (c *Collection) FindByID(ctx context.Context, id string) (Document, error) {
	canonical, ok := canonicalID(id)
	if !ok {
		return Document{}, c.notFound(id)
	}

	row := c.db.QueryRowContext(ctx, `
SELECT id, collection, seq, body, created_at, updated_at
FROM documents
WHERE collection = $1 AND id = $2
`, c.name, canonical)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, c.notFound(id)
		}
		return Document{}, err
	}
	return doc, nil
}

// FindAll returns documents in insertion order. A limit <= 0 means no bound.
func (c *Collection) FindAll(ctx context.Context, limit int) ([]Document, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = c.db.QueryContext(ctx, `
SELECT id, collection, seq, body, created_at, updated_at
FROM documents
WHERE collection = $1
ORDER BY seq ASC
LIMIT $2
`, c.name, limit)
	} else {
		rows, err = c.db.QueryContext(ctx, `
SELECT id, collection, seq, body, created_at, updated_at
FROM documents
WHERE collection = $1
ORDER BY seq ASC
`, c.name)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Replace overwrites the body of an existing document.
func (c *Collection) Replace(ctx context.Context, id string, body []byte) (Document, error) {
	if !json.Valid(body) {
		return Document{}, errors.New("state: document body must be valid JSON")
	}
	canonical, ok := canonicalID(id)
	if !ok {
		return Document{}, c.notFound(id)
	}

	row := c.db.QueryRowContext(ctx, `
UPDATE documents
SET body = $3, updated_at = NOW()
WHERE collection = $1 AND id = $2
RETURNING id, collection, seq, body, created_at, updated_at
`, c.name, canonical, body)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, c.notFound(id)
		}
		return Document{}, err
	}
	return doc, nil
}

// RemoveByID deletes a document and returns its last stored state.
func (c *Collection) RemoveByID(ctx context.Context, id string) (Document, error) {
	canonical, ok := canonicalID(id)
	if !ok {
		return Document{}, c.notFound(id)
	}

	row := c.db.QueryRowContext(ctx, `
DELETE FROM documents
WHERE collection = $1 AND id = $2
RETURNING id, collection, seq, body, created_at, updated_at
`, c.name, canonical)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, c.notFound(id)
		}
		return Document{}, err
	}
	return doc, nil
}

func (c *Collection) notFound(id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, c.name, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var body []byte
	if err := row.Scan(&doc.ID, &doc.Collection, &doc.Seq, &body, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Body = json.RawMessage(body)
	return doc, nil
}
