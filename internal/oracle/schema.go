package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/groktime-project/groktime/internal/core"
)

// responseSchema is sent to providers that support structured output and
// used to validate every answer locally.
const responseSchema = `{
  "type": "object",
  "properties": {
    "pattern": {
      "type": "string",
      "description": "A single Grok pattern string using %{PATTERN:name} syntax."
    },
    "note": {
      "type": "string",
      "description": "Explanation of pattern construction decisions."
    }
  },
  "required": ["pattern", "note"],
  "additionalProperties": false
}`

const schemaURL = "https://groktime.schemas.local/oracle/grok.schema.json"

var compiledSchema = mustCompileSchema()

// %{TYPE:field...}
var namedRefRe = regexp.MustCompile(`%\{\w+:([^:}]*)`)

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(responseSchema)); err != nil {
		panic(fmt.Sprintf("oracle schema load failed: %v", err))
	}
	return c.MustCompile(schemaURL)
}

// SchemaDocument returns the response schema as a decoded JSON value, for
// embedding in provider requests.
func SchemaDocument() map[string]interface{} {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(responseSchema), &doc); err != nil {
		panic(err)
	}
	return doc
}

// ParseResponse validates raw oracle text. The text must be a JSON object
// with exactly a string "pattern" and a string "note", optionally wrapped in
// a markdown fence, and every named capture must use a vocabulary field.
// Violations are *core.OracleSchemaError.
func ParseResponse(raw string, vocab core.Vocabulary) (Response, error) {
	text := cleanJSON(raw)
	if text == "" {
		return Response{}, &core.OracleSchemaError{Reason: "empty response"}
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return Response{}, &core.OracleSchemaError{Reason: "response is not JSON", Err: err}
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Response{}, &core.OracleSchemaError{Reason: "response does not match schema", Err: err}
	}

	var resp Response
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return Response{}, &core.OracleSchemaError{Reason: "decoding response", Err: err}
	}
	if strings.TrimSpace(resp.Pattern) == "" {
		return Response{}, &core.OracleSchemaError{Reason: "empty pattern"}
	}

	var names []string
	for _, m := range namedRefRe.FindAllStringSubmatch(resp.Pattern, -1) {
		if m[1] != "" {
			names = append(names, m[1])
		}
	}
	if unknown := vocab.Unknown(names); len(unknown) > 0 {
		return Response{}, &core.OracleSchemaError{
			Reason: "fields outside vocabulary: " + strings.Join(unknown, ", "),
		}
	}
	return resp, nil
}

// cleanJSON extracts JSON from a response that might have markdown fencing.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
