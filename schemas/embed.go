// Package schemas embeds the JSON Schemas used to validate shipyard files.
package schemas

import _ "embed"

// ProjectFileV1Schema is the JSON Schema for shipyard.yaml.
//
//go:embed project-v1.schema.json
var ProjectFileV1Schema []byte
