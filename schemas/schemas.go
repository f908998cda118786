// Package schemas embeds the JSON Schemas for suite and test-case YAML
// files.
package schemas

import _ "embed"

//go:embed suite.schema.json
var SuiteSchemaJSON string

//go:embed testcase.schema.json
var TestCaseSchemaJSON string
