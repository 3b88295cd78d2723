package functions

import "fmt"

// ResultKind classifies the outcome of a function call.
type ResultKind int

const (
	KindOK ResultKind = iota
	KindOutOfRange
	KindUnknownFunction
	KindInvalidArguments
	KindExternal
	KindRefused
	KindInternal
)

var kindNames = map[ResultKind]string{
	KindOK:               "ok",
	KindOutOfRange:       "out_of_range",
	KindUnknownFunction:  "unknown_function",
	KindInvalidArguments: "invalid_arguments",
	KindExternal:         "external",
	KindRefused:          "refused",
	KindInternal:         "internal",
}

func (k ResultKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is the textual outcome fed back to the model.
type Result struct {
	Kind    ResultKind
	Message string
	// RolledBack is set when the call reset the latest commit.
	RolledBack bool
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Kind == KindOK
}

// Text renders the result as the function turn content.
func (r Result) Text() string {
	if r.OK() {
		return "SUCCESS: " + r.Message
	}
	return "ERROR: " + r.Message
}

func success(format string, args ...any) Result {
	return Result{Kind: KindOK, Message: fmt.Sprintf(format, args...)}
}

func failure(kind ResultKind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
