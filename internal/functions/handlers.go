package functions

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"github.com/KainAber/md2do/internal/todo"
	"github.com/KainAber/md2do/internal/vcs"
	"github.com/KainAber/md2do/internal/views"
)

// intArg reads an integer argument. Integral values written as floats or
// with an exponent ("2.0", "1e1") are accepted; fractions and values that
// do not fit an int are rejected.
func intArg(args map[string]any, name string) (int, Result, bool) {
	var text string
	switch v := args[name].(type) {
	case json.Number:
		text = v.String()
	case float64:
		text = strconv.FormatFloat(v, 'g', -1, 64)
	case int:
		return v, Result{}, true
	default:
		return 0, failure(KindInvalidArguments, "Invalid argument %s: expected an integer", name), false
	}
	r, ok := new(big.Rat).SetString(text)
	if !ok || !r.IsInt() {
		return 0, failure(KindInvalidArguments, "Invalid argument %s: %s is not an integer", name, text), false
	}
	num := r.Num()
	if !num.IsInt64() || int64(int(num.Int64())) != num.Int64() {
		return 0, failure(KindInvalidArguments, "Invalid argument %s: %s is out of range", name, text), false
	}
	return int(num.Int64()), Result{}, true
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func applyEdit(env *Env, op todo.Op) ([]string, Result, bool) {
	before, _, err := env.Store.Apply(op)
	if err != nil {
		var rangeErr *todo.RangeError
		if errors.As(err, &rangeErr) {
			return before, failure(KindOutOfRange, "%s", rangeErr.Error()), false
		}
		return before, failure(KindExternal, "Failed to update todo file - %v", err), false
	}
	return before, Result{}, true
}

func replaceRow(_ context.Context, env *Env, args map[string]any) Result {
	row, res, ok := intArg(args, "row")
	if !ok {
		return res
	}
	content := stringArg(args, "content")
	if _, res, ok := applyEdit(env, todo.Op{Kind: todo.OpReplace, Row: row, Content: content}); !ok {
		return res
	}
	return success("Replaced row %d with: %s", row, content)
}

func deleteRow(_ context.Context, env *Env, args map[string]any) Result {
	row, res, ok := intArg(args, "row")
	if !ok {
		return res
	}
	before, res, ok := applyEdit(env, todo.Op{Kind: todo.OpDelete, Row: row})
	if !ok {
		return res
	}
	return success("Deleted row %d: %s", row, before[row-1])
}

func insertRow(_ context.Context, env *Env, args map[string]any) Result {
	row, res, ok := intArg(args, "row")
	if !ok {
		return res
	}
	content := stringArg(args, "content")
	if _, res, ok := applyEdit(env, todo.Op{Kind: todo.OpInsert, Row: row, Content: content}); !ok {
		return res
	}
	return success("Inserted at row %d: %s", row, content)
}

func moveRow(_ context.Context, env *Env, args map[string]any) Result {
	row, res, ok := intArg(args, "row")
	if !ok {
		return res
	}
	to, res, ok := intArg(args, "to")
	if !ok {
		return res
	}
	if _, res, ok := applyEdit(env, todo.Op{Kind: todo.OpMove, Row: row, To: to}); !ok {
		return res
	}
	return success("Moved row %d to position %d", row, to)
}

func createView(_ context.Context, env *Env, args map[string]any) Result {
	name, pattern := stringArg(args, "name"), stringArg(args, "regex")
	lines, err := env.Store.Load()
	if err != nil {
		return failure(KindExternal, "Failed to create view - %v", err)
	}
	v, err := env.Views.Create(name, pattern, lines)
	switch {
	case errors.Is(err, views.ErrInvalidPattern), errors.Is(err, views.ErrInvalidName):
		return failure(KindInvalidArguments, "%s", capitalize(err.Error()))
	case err != nil:
		return failure(KindExternal, "Failed to create view - %v", err)
	}
	return success("Created view '%s' with %d matches. View saved to %s", v.Name, len(v.Matches), v.Path)
}

func rollbackPreviousCommit(ctx context.Context, env *Env, _ map[string]any) Result {
	err := env.Log.Rollback(ctx)
	switch {
	case errors.Is(err, vcs.ErrNoCommits):
		return failure(KindRefused, "No commits to rollback")
	case errors.Is(err, vcs.ErrNotOwned):
		return failure(KindRefused, "Latest commit was not made by this app, cannot rollback")
	case err != nil:
		return failure(KindExternal, "Rollback failed - %v", err)
	}
	res := success("Successfully rolled back the previous change")
	res.RolledBack = true
	return res
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
