// Package functions exposes document operations to the model as named
// functions with JSON-schema declared arguments.
package functions

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/KainAber/md2do/internal/gateway"
	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/utils"
	"github.com/KainAber/md2do/internal/vcs"
	"github.com/KainAber/md2do/internal/views"
)

//go:embed functions.json
var declarationsJSON []byte

// Env holds the collaborators handlers act on.
type Env struct {
	Store *todo.Store
	Views *views.Manager
	Log   *vcs.Log
}

// Handler executes one function with validated arguments.
type Handler func(ctx context.Context, env *Env, args map[string]any) Result

type handlerSpec struct {
	params []string
	fn     Handler
}

// Registry maps function names to handlers and their declarations.
type Registry struct {
	env      *Env
	decls    []gateway.Function
	schemas  map[string]*jsonschema.Schema
	handlers map[string]handlerSpec
}

func builtinHandlers() map[string]handlerSpec {
	return map[string]handlerSpec{
		"replace_row":              {params: []string{"row", "content"}, fn: replaceRow},
		"delete_row":               {params: []string{"row"}, fn: deleteRow},
		"insert_row":               {params: []string{"row", "content"}, fn: insertRow},
		"move_row":                 {params: []string{"row", "to"}, fn: moveRow},
		"create_view":              {params: []string{"name", "regex"}, fn: createView},
		"rollback_previous_commit": {params: nil, fn: rollbackPreviousCommit},
	}
}

// New builds the registry and checks that declarations and handlers agree.
func New(env Env) (*Registry, error) {
	return newRegistry(&env, declarationsJSON, builtinHandlers())
}

func newRegistry(env *Env, declJSON []byte, handlers map[string]handlerSpec) (*Registry, error) {
	var decls []gateway.Function
	if err := json.Unmarshal(declJSON, &decls); err != nil {
		return nil, fmt.Errorf("parse function declarations: %w", err)
	}
	if err := checkLockstep(decls, handlers); err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schemas := make(map[string]*jsonschema.Schema, len(decls))
	for _, d := range decls {
		url := "mem://functions/" + d.Name + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(d.Parameters)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", d.Name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", d.Name, err)
		}
		schemas[d.Name] = schema
	}

	return &Registry{env: env, decls: decls, schemas: schemas, handlers: handlers}, nil
}

// checkLockstep verifies every declaration has a handler with the same
// parameter names, and every handler is declared.
func checkLockstep(decls []gateway.Function, handlers map[string]handlerSpec) error {
	var problems []string
	declared := make(map[string]bool, len(decls))
	for _, d := range decls {
		if declared[d.Name] {
			problems = append(problems, fmt.Sprintf("%s declared twice", d.Name))
			continue
		}
		declared[d.Name] = true
		h, ok := handlers[d.Name]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s has no handler", d.Name))
			continue
		}
		var params struct {
			Properties map[string]json.RawMessage `json:"properties"`
		}
		if err := json.Unmarshal(d.Parameters, &params); err != nil {
			problems = append(problems, fmt.Sprintf("%s: parameters: %v", d.Name, err))
			continue
		}
		got := make([]string, 0, len(params.Properties))
		for name := range params.Properties {
			got = append(got, name)
		}
		want := append([]string(nil), h.params...)
		sort.Strings(got)
		sort.Strings(want)
		if strings.Join(got, ",") != strings.Join(want, ",") {
			problems = append(problems, fmt.Sprintf("%s declares (%s) but handler takes (%s)",
				d.Name, strings.Join(got, ", "), strings.Join(want, ", ")))
		}
	}
	for name := range handlers {
		if !declared[name] {
			problems = append(problems, fmt.Sprintf("%s is not declared", name))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("function registry out of sync: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Definitions returns the declarations sent to the model.
func (r *Registry) Definitions() []gateway.Function {
	return append([]gateway.Function(nil), r.decls...)
}

// Names returns the registered function names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.decls))
	for _, d := range r.decls {
		names = append(names, d.Name)
	}
	return names
}

// Execute runs the function name with the raw JSON arguments from the model.
// It always returns a Result; panics in handlers become KindInternal.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string) (res Result) {
	h, ok := r.handlers[name]
	if !ok {
		return failure(KindUnknownFunction, "Unknown function: %s", name)
	}

	if strings.TrimSpace(rawArgs) == "" {
		rawArgs = "{}"
	}
	dec := json.NewDecoder(strings.NewReader(rawArgs))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return failure(KindInvalidArguments, "Invalid arguments for %s: %v", name, err)
	}
	args, ok := decoded.(map[string]any)
	if !ok {
		return failure(KindInvalidArguments, "Invalid arguments for %s: expected a JSON object", name)
	}
	if err := r.schemas[name].Validate(decoded); err != nil {
		return failure(KindInvalidArguments, "Invalid arguments for %s: %s", name, describeSchemaError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			res = failure(KindInternal, "Error executing %s: %v", name, p)
		}
	}()
	return h.fn(ctx, r.env, args)
}

func describeSchemaError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if path := utils.JSONPointerToPath(ve.InstanceLocation); path != "" {
		return path + ": " + ve.Message
	}
	return ve.Message
}
