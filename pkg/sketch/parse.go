package sketch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Parse decodes a JSON document, applies defaults, and runs structural
// validation. The returned document is ready for lowering.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, fmt.Errorf("parse document: %w", err)
	}
	ApplyDefaults(&doc)
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ApplyDefaults fills omitted optional fields in place.
func ApplyDefaults(doc *Document) {
	if doc.Units == "" {
		doc.Units = DefaultUnits
	}
	if doc.Parameters == nil {
		doc.Parameters = Params{}
	}
}
