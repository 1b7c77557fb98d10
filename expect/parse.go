package expect

import (
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/vitalvas/routeprobe/pipeline"
)

// argEnv is the environment argument expressions are evaluated in.
type argEnv struct {
	Ignore any                            `expr:"ignore"`
	AnyOf  func(name string) (any, error) `expr:"anyOf"`
}

func newArgEnv() argEnv {
	return argEnv{
		Ignore: ignoreMarker{},
		AnyOf: func(name string) (any, error) {
			if strings.TrimSpace(name) == "" {
				return nil, fmt.Errorf("anyOf needs a type name")
			}
			return anyValue{name: name}, nil
		},
	}
}

// Parse builds an expectation from text such as
//
//	Items.Show(42, ignore, anyOf("int"), {"name": "pen"})
//
// The callee names a handler as Controller.Action, or as a bare action
// when only one controller has it. Arguments are expressions evaluated
// with expr; ignore and anyOf(type) stand for the Ignore and AnyOf markers.
func Parse(table *pipeline.Table, text string) (*ExpectedCall, error) {
	text = strings.TrimSpace(text)

	tree, err := parser.Parse(text)
	if err != nil {
		return nil, &ParseError{Input: text, Reason: err.Error()}
	}

	node, ok := tree.Node.(*ast.CallNode)
	if !ok {
		return nil, &ParseError{Input: text, Reason: "expected a call such as Controller.Action(...)"}
	}

	name, err := calleeName(node.Callee)
	if err != nil {
		return nil, &ParseError{Input: text, Reason: err.Error()}
	}

	args, err := evalArgs(text, len(node.Arguments))
	if err != nil {
		return nil, &ParseError{Input: text, Reason: err.Error()}
	}

	entries := table.Lookup(name)
	switch len(entries) {
	case 0:
		return nil, &ParseError{Input: text, Reason: fmt.Sprintf("no route dispatches to handler %s", name)}
	case 1:
	default:
		if !sameHandler(entries) {
			return nil, &ParseError{Input: text, Reason: fmt.Sprintf("handler name %s is ambiguous: %s", name, strings.Join(qualifiedNames(entries), ", "))}
		}
	}

	return build(text, entries[0], args)
}

// MustParse is like Parse but panics on error.
func MustParse(table *pipeline.Table, text string) *ExpectedCall {
	c, err := Parse(table, text)
	if err != nil {
		panic(err)
	}
	return c
}

func calleeName(n ast.Node) (string, error) {
	switch c := n.(type) {
	case *ast.IdentifierNode:
		return c.Value, nil
	case *ast.MemberNode:
		owner, ok := c.Node.(*ast.IdentifierNode)
		if !ok {
			break
		}
		prop, ok := c.Property.(*ast.StringNode)
		if !ok {
			break
		}
		return owner.Value + "." + prop.Value, nil
	}
	return "", fmt.Errorf("callee must be Controller.Action or Action")
}

func evalArgs(text string, count int) ([]any, error) {
	if count == 0 {
		return nil, nil
	}

	open := strings.Index(text, "(")
	closing := strings.LastIndex(text, ")")
	if open < 0 || closing <= open {
		return nil, fmt.Errorf("unbalanced argument list")
	}

	program, err := expr.Compile("["+text[open+1:closing]+"]", expr.Env(argEnv{}))
	if err != nil {
		return nil, err
	}

	out, err := expr.Run(program, newArgEnv())
	if err != nil {
		return nil, err
	}

	args, ok := out.([]any)
	if !ok || len(args) != count {
		return nil, fmt.Errorf("arguments evaluated to %T", out)
	}
	return args, nil
}

func qualifiedNames(entries []pipeline.Entry) []string {
	var out []string
	for _, e := range entries {
		if q := e.Handler.Qualified(); !slices.Contains(out, q) {
			out = append(out, q)
		}
	}
	return out
}

// sameHandler reports whether all entries dispatch to one handler of one
// package.
func sameHandler(entries []pipeline.Entry) bool {
	for _, e := range entries[1:] {
		if !e.Handler.Equal(entries[0].Handler) {
			return false
		}
	}
	return true
}
