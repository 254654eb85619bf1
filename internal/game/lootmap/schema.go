package lootmap

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed lootmap.schema.json
var schemaSource string

const schemaURL = "lootmap.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(schemaURL, schemaSource)
})

// SchemaSource returns the JSON schema describing a loot map document.
func SchemaSource() string {
	return schemaSource
}

// ValidateSchema checks data against the loot map schema. Decode tolerates
// documents that fail it; the result is advisory.
//
// Postcondition: Returns nil iff data is JSON that satisfies the schema.
func ValidateSchema(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("lootmap: compiling schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("lootmap: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("lootmap: schema: %w", err)
	}
	return nil
}
