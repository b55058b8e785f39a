// Package schema validates JSON documents against a JSON Schema and groups
// violations by dotted field path.
package schema

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed user_with_posts.json
var userWithPostsSchema []byte

const rootField = "(root)"

// Result is the outcome of validating one document.
type Result struct {
	Valid bool
	// Details maps a dotted field path ("user.address.city",
	// "posts.0.title") to its messages. Violations of the document root
	// itself are not listed.
	Details map[string][]string
}

// Validator checks documents against a compiled schema. It is safe for
// concurrent use.
type Validator struct {
	schema *gojsonschema.Schema
}

// New compiles the given JSON Schema.
func New(schema []byte) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &Validator{schema: s}, nil
}

// NewUserWithPosts returns a validator for the {user, posts} aggregate.
func NewUserWithPosts() (*Validator, error) {
	return New(userWithPostsSchema)
}

// Validate checks doc. The error is non-nil only when doc is not JSON.
func (v *Validator) Validate(doc []byte) (Result, error) {
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return Result{}, fmt.Errorf("schema: validate: %w", err)
	}
	if res.Valid() {
		return Result{Valid: true}, nil
	}

	details := make(map[string][]string)
	for _, e := range res.Errors() {
		field := fieldOf(e)
		if field == rootField {
			continue
		}
		details[field] = append(details[field], e.Description())
	}
	return Result{Valid: false, Details: details}, nil
}

// fieldOf returns the path a violation belongs to. Missing properties are
// reported on the property itself rather than on its parent.
func fieldOf(e gojsonschema.ResultError) string {
	field := e.Field()
	if e.Type() != "required" {
		return field
	}
	prop, ok := e.Details()["property"].(string)
	if !ok {
		return field
	}
	if field == rootField {
		return prop
	}
	return field + "." + prop
}
