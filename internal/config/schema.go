package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// checkSchema unifies the decoded config with #Config and returns one issue
// per violated constraint. A non-nil error means the schema itself is broken.
func checkSchema(c Config) ([]string, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	value := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile config: %w", err)
	}

	err = def.Unify(value).Validate(cue.Concrete(true))
	if err == nil {
		return nil, nil
	}

	var issues []string
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		issue := describe(e)
		if seen[issue] {
			continue
		}
		seen[issue] = true
		issues = append(issues, issue)
	}
	return issues, nil
}

func describe(e cueerrors.Error) string {
	path := e.Path()
	if len(path) > 0 && path[0] == "#Config" {
		path = path[1:]
	}
	format, args := e.Msg()
	msg := fmt.Sprintf(format, args...)
	if len(path) == 0 {
		return msg
	}
	return strings.Join(path, ".") + ": " + msg
}
