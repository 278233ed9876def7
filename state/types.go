package state

import (
	"encoding/json"
	"time"
)

// Document is a JSON body persisted in a named collection.
type Document struct {
	ID         string          `json:"id"`
	Collection string          `json:"collection"`
	Seq        int64           `json:"seq"`
	Body       json.RawMessage `json:"body"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
