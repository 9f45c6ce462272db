// Package schema validates canonical snapshot documents against the
// published JSON Schema, so exported chains can be checked by third parties
// with off-the-shelf tooling.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed snapshot.schema.json
var snapshotSchemaJSON []byte

var snapshotSchema = func() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("snapshot.schema.json", bytes.NewReader(snapshotSchemaJSON)); err != nil {
		panic(fmt.Sprintf("schema: add resource: %v", err))
	}
	return c.MustCompile("snapshot.schema.json")
}()

// ValidateSnapshotJSON checks a canonical snapshot document. The returned
// error carries the schema violation detail.
func ValidateSnapshotJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("snapshot is not valid JSON: %w", err)
	}
	if err := snapshotSchema.Validate(doc); err != nil {
		return fmt.Errorf("snapshot schema violation: %w", err)
	}
	return nil
}
