package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/siherrmann/grapher/helper"
)

// Properties is the open-ended key→string metadata carried by a Node.
// It is kept as a typed map in memory; at the storage boundary it is
// encoded as JSON and stored in the nodes table's JSONB properties column.
type Properties map[string]string

// MaxPropertyKeys bounds the number of keys a single node's properties may carry.
const MaxPropertyKeys = 32

// Value implements driver.Valuer for database storage.
func (p Properties) Value() (driver.Value, error) {
	return p.Marshal()
}

// Scan implements sql.Scanner for database retrieval.
func (p *Properties) Scan(value interface{}) error {
	return p.Unmarshal(value)
}

// Marshal converts Properties to JSON bytes.
func (p Properties) Marshal() ([]byte, error) {
	if p == nil {
		return json.Marshal(Properties{})
	}
	return json.Marshal(p)
}

// Unmarshal converts JSON bytes (or an already-typed Properties) into p.
func (p *Properties) Unmarshal(value interface{}) error {
	if value == nil {
		*p = Properties{}
		return nil
	}

	if s, ok := value.(Properties); ok {
		*p = s
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			return helper.NewError("properties byte assertion", errors.New("type assertion to []byte failed"))
		}
	}
	if len(b) == 0 {
		*p = Properties{}
		return nil
	}
	return json.Unmarshal(b, p)
}
