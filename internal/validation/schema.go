// Package validation checks suite and test-case YAML files against their
// JSON Schemas before a run starts, so authoring mistakes surface as file
// and path locations instead of runtime failures.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/bookedby/convoqa/schemas"
)

// defaultPrinter formats schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

var suiteSchema *jsonschema.Schema
var testCaseSchema *jsonschema.Schema

func init() {
	suiteSchema = mustCompileSchema(schemas.SuiteSchemaJSON, "suite.schema.json")
	testCaseSchema = mustCompileSchema(schemas.TestCaseSchemaJSON, "testcase.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateSuiteFile validates a suite YAML file and every test-case file
// its globs resolve to. Test-case errors are keyed by path relative to the
// suite file.
func ValidateSuiteFile(suitePath string) (suiteErrs []string, testErrs map[string][]string, err error) {
	data, err := os.ReadFile(suitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading suite file: %w", err)
	}

	suiteErrs = ValidateSuiteBytes(data)

	var doc struct {
		Tests []string `yaml:"tests"`
	}
	if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
		return suiteErrs, nil, nil // suite errors already explain the parse failure
	}

	baseDir := filepath.Dir(suitePath)
	testErrs = make(map[string][]string)

	for _, pattern := range doc.Tests {
		matches, globErr := filepath.Glob(filepath.Join(baseDir, pattern))
		if globErr != nil {
			continue
		}
		for _, testFile := range matches {
			testData, readErr := os.ReadFile(testFile)
			if readErr != nil {
				continue
			}
			errs := ValidateTestCaseBytes(testData)
			if len(errs) > 0 {
				relPath, relErr := filepath.Rel(baseDir, testFile)
				if relErr != nil {
					relPath = testFile
				}
				testErrs[relPath] = errs
			}
		}
	}

	return suiteErrs, testErrs, nil
}

// ValidateSuiteBytes validates raw YAML against the suite schema.
func ValidateSuiteBytes(data []byte) []string {
	return validateYAMLBytes(suiteSchema, data)
}

// ValidateTestCaseBytes validates raw YAML against the test-case schema.
func ValidateTestCaseBytes(data []byte) []string {
	return validateYAMLBytes(testCaseSchema, data)
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}
	return validateAgainstSchema(schema, convertToJSONCompatible(yamlDoc))
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible normalizes YAML-decoded values for the schema
// validator.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
