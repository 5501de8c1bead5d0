package roster

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// document is the persisted shape. Unknown fields are ignored on load.
type document struct {
	Candidates        []*Candidate `json:"candidates"`
	ActiveCandidateID string       `json:"activeCandidateId,omitempty"`
}

const documentSchema = `{
  "type": "object",
  "properties": {
    "candidates": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["id"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "currentIndex": {"type": "integer", "minimum": 0},
          "questions": {"type": ["array", "null"]},
          "transcript": {"type": ["array", "null"]},
          "status": {"type": "string"}
        }
      }
    },
    "activeCandidateId": {"type": ["string", "null"]}
  }
}`

var schema = mustSchema(documentSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("roster document schema: %v", err))
	}
	return s
}

// decodeDocument validates data against the roster schema before decoding it.
func decodeDocument(data []byte) (*document, error) {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("parse roster document: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid roster document: %s", strings.Join(msgs, "; "))
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode roster document: %w", err)
	}
	return &doc, nil
}

func encodeDocument(doc *document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode roster document: %w", err)
	}
	return data, nil
}
