package auth

import (
	"context"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/sawyersec/uds-tcp-graphql/errors"
	"github.com/sawyersec/uds-tcp-graphql/storage"
)

// introspectionPrefix marks GraphQL introspection fields, which are
// always denied for non-admin principals regardless of grants.
const introspectionPrefix = "__"

// Authorizer decides whether a principal may execute a query. Decisions
// fail closed: a nil principal, an unparsable document, or a missing
// grant all deny; only a store failure surfaces as an error.
type Authorizer struct {
	store storage.Store
}

// NewAuthorizer creates an Authorizer backed by the given store.
func NewAuthorizer(store storage.Store) *Authorizer {
	return &Authorizer{store: store}
}

// Allows reports whether the principal may execute queryText. ADMIN
// principals are allowed unconditionally, before any document
// inspection, including introspection queries.
func (a *Authorizer) Allows(ctx context.Context, principal *Principal, queryText string) (bool, error) {
	if principal == nil {
		return false, nil
	}
	if principal.IsAdmin() {
		return true, nil
	}

	action, fields, ok := inspectDocument(queryText)
	if !ok {
		// Malformed document is a denial, not an error: the executor
		// never sees a query the authorizer could not read.
		return false, nil
	}

	for _, name := range fields {
		if strings.HasPrefix(name, introspectionPrefix) {
			return false, nil
		}
	}

	granted, err := a.store.FindGrants(ctx, principal.KeyID, action)
	if err != nil {
		return false, errors.Wrap(err, "Authorizer", "Allows", "grant lookup")
	}

	if granted.Contains(storage.Wildcard) {
		return true, nil
	}
	for _, name := range fields {
		if !granted.Contains(name) {
			return false, nil
		}
	}

	return true, nil
}

// inspectDocument extracts the inferred action and the lowercased
// top-level field names from a query document.
//
// When a document holds several operation definitions, the action
// reflects only the last one while fields accumulate across all of
// them. This asymmetry is inherited upstream behavior and is kept
// deliberately until product intent says otherwise.
func inspectDocument(queryText string) (storage.Action, []string, bool) {
	doc, err := parser.ParseQuery(&ast.Source{Input: queryText})
	if err != nil {
		return "", nil, false
	}

	action := storage.ActionQuery
	var fields []string

	for _, op := range doc.Operations {
		action = storage.Action(strings.ToUpper(string(op.Operation)))
		for _, sel := range op.SelectionSet {
			if field, ok := sel.(*ast.Field); ok {
				fields = append(fields, strings.ToLower(field.Name))
			}
		}
	}

	return action, fields, true
}
