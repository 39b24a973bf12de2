// Package interpolate evaluates jq expressions: ${ ... } expressions
// embedded in state file arguments, and the output filters of the CLI.
package interpolate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/sirupsen/logrus"
)

// Traverse returns a copy of node with every ${ ... } string replaced by
// the result of evaluating it against input. Variables are bound by name,
// e.g. "$location".
func Traverse(node any, input any, variables map[string]any) (any, error) {
	return traverseAndEvaluate(node, input, variables)
}

func traverseAndEvaluate(node any, input any, variables map[string]any) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			evaluatedValue, err := traverseAndEvaluate(value, input, variables)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"key": key,
				}).WithError(err).Error("Failed to evaluate expression in map")
				return nil, err
			}
			out[key] = evaluatedValue
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			evaluatedValue, err := traverseAndEvaluate(value, input, variables)
			if err != nil {
				return nil, err
			}
			out[i] = evaluatedValue
		}
		return out, nil

	case string:
		if expr, ok := strictExpr(v); ok {
			return evaluateJQExpression(expr, input, variables)
		}
		return v, nil

	default:
		return v, nil
	}
}

// strictExpr reports whether s is a whole ${ ... } expression and returns
// its body.
func strictExpr(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	return strings.TrimSpace(s[2 : len(s)-1]), true
}

// IsExpr reports whether s is a ${ ... } expression.
func IsExpr(s string) bool {
	_, ok := strictExpr(s)
	return ok
}

func compile(expression string, variables map[string]any) (*gojq.Code, []any, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse jq expression: %s, error: %w", expression, err)
	}

	names, values := getVariableNamesAndValues(variables)

	code, err := gojq.Compile(query, gojq.WithVariables(names))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compile jq expression: %s, error: %w", expression, err)
	}
	return code, values, nil
}

// evaluateJQExpression returns the first result of a jq expression
func evaluateJQExpression(expression string, input any, variables map[string]any) (any, error) {
	code, values, err := compile(expression, variables)
	if err != nil {
		return nil, err
	}

	iter := code.Run(input, values...)
	result, ok := iter.Next()
	if !ok {
		return nil, errors.New("no result from jq evaluation")
	}

	if errVal, isErr := result.(error); isErr {
		return nil, fmt.Errorf("jq evaluation error: %w", errVal)
	}

	return result, nil
}

// Query runs a jq filter over input and returns every result it emits.
// Input must be made of plain JSON values: maps, slices, strings, numbers,
// booleans and nil.
func Query(expression string, input any) ([]any, error) {
	code, _, err := compile(expression, nil)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if errVal, isErr := result.(error); isErr {
			return nil, fmt.Errorf("jq evaluation error: %w", errVal)
		}
		results = append(results, result)
	}
	return results, nil
}

// getVariableNamesAndValues constructs two slices, where 'names[i]' matches 'values[i]'.
func getVariableNamesAndValues(vars map[string]any) ([]string, []any) {
	names := make([]string, 0, len(vars))
	values := make([]any, 0, len(vars))

	for k, v := range vars {
		names = append(names, k)
		values = append(values, v)
	}
	return names, values
}
