package save

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema describing a Snapshot blob.
func Schema() ([]byte, error) {
	schema := jsonschema.Reflect(&Snapshot{})
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot schema: %w", err)
	}
	return out, nil
}
