package policy

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log"
	"github.com/open-policy-agent/opa/rego"
)

var logger = logging.Logger("policy")

// InputMap is the document a policy sees as `input`.
type InputMap map[string]interface{}

/*
Access evaluates a list's access policy. A policy is a rego module in
package "access" that defines a boolean "allow". The input has the shape:

	{
		"operation": "create" | "read" | "update" | "delete",
		"list": "<list key>",
		"item": { ... the create data, or the stored item ... }
	}

For example, to make a list read only:

	package access

	default allow = false

	allow {
		input.operation == "read"
	}

A nil *Access (no module configured) allows everything.
*/
type Access struct {
	listKey string
	query   rego.PreparedEvalQuery
}

// New prepares the module for evaluation. An empty module returns nil and
// no error.
func New(ctx context.Context, listKey string, module string) (*Access, error) {
	if module == "" {
		return nil, nil
	}
	q, err := rego.New(
		rego.Query("allow = data.access.allow"),
		rego.Module(listKey+".rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("error preparing access policy for %s: %w", listKey, err)
	}
	return &Access{listKey: listKey, query: q}, nil
}

// Allowed evaluates the policy for operation on item.
func (a *Access) Allowed(ctx context.Context, operation string, item map[string]interface{}) (bool, error) {
	if a == nil {
		return true, nil
	}
	input := InputMap{
		"operation": operation,
		"list":      a.listKey,
		"item":      item,
	}
	results, err := a.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("error evaluating: %w", err)
	}
	if len(results) == 0 {
		logger.Debugf("undefined access result for %s %s", a.listKey, operation)
		return false, nil
	}
	return allowResult(results)
}

func allowResult(results rego.ResultSet) (bool, error) {
	allowed, ok := results[0].Bindings["allow"].(bool)
	if !ok {
		return false, fmt.Errorf("unknown result type: %T", results[0].Bindings["allow"])
	}
	return allowed, nil
}
