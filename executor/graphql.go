package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/sawyersec/uds-tcp-graphql/auth"
	"github.com/sawyersec/uds-tcp-graphql/message"
	"github.com/sawyersec/uds-tcp-graphql/storage"
)

var _ Interface = (*GraphQL)(nil)

// resolverFunc resolves one top-level field. args holds the coerced
// argument values; the returned value is placed under the field's alias.
type resolverFunc func(ctx context.Context, args map[string]any, principal *auth.Principal) (any, error)

// GraphQL is a resolver-dispatch executor over the store-backed schema.
// Introspection is not served: no __ fields resolve, mirroring an engine
// configured with introspection disabled.
type GraphQL struct {
	store  storage.Store
	logger *slog.Logger

	queries   map[string]resolverFunc
	mutations map[string]resolverFunc
}

// NewGraphQL creates the executor with its full resolver set.
func NewGraphQL(store storage.Store, logger *slog.Logger) *GraphQL {
	if logger == nil {
		logger = slog.Default()
	}

	e := &GraphQL{
		store:  store,
		logger: logger.With("component", "executor"),
	}

	e.queries = map[string]resolverFunc{
		"hello":            e.resolveHello,
		"me":               e.resolveMe,
		"adminHealth":      e.resolveAdminHealth,
		"adminKeys":        e.resolveAdminKeys,
		"adminPermissions": e.resolveAdminPermissions,
	}
	e.mutations = map[string]resolverFunc{
		"createApiKey":     e.resolveCreateAPIKey,
		"revokeApiKey":     e.resolveRevokeAPIKey,
		"grantPermission":  e.resolveGrantPermission,
		"removePermission": e.resolveRemovePermission,
	}

	return e
}

// Execute parses and runs one request. Parse failures come back as a
// result with a GRAPHQL_PARSE_FAILED error and a 501 status override,
// never as a Go error; the error return is reserved for transport-level
// failures the pipeline maps to 500.
func (e *GraphQL) Execute(ctx context.Context, req Request) (*Result, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: req.Query})
	if err != nil {
		e.logger.Warn("query parse failed", "error", err)
		return &Result{
			Errors: []message.WireError{{
				Message:    err.Error(),
				Extensions: map[string]any{"code": message.CodeParseFailed},
			}},
			Status: 501,
		}, nil
	}

	op, wireErr := selectOperation(doc, req.OperationName)
	if wireErr != nil {
		return &Result{Errors: []message.WireError{*wireErr}}, nil
	}

	var resolvers map[string]resolverFunc
	var rootType string
	switch op.Operation {
	case ast.Query:
		resolvers, rootType = e.queries, "Query"
	case ast.Mutation:
		resolvers, rootType = e.mutations, "Mutation"
	default:
		return &Result{Errors: []message.WireError{validationError(
			fmt.Sprintf("operation type %q is not supported", op.Operation))}}, nil
	}

	// Validate the selection set before resolving anything: an unknown
	// field fails the whole operation with no data, like engine-side
	// validation would.
	fields := make([]*ast.Field, 0, len(op.SelectionSet))
	for _, sel := range op.SelectionSet {
		field, ok := sel.(*ast.Field)
		if !ok {
			return &Result{Errors: []message.WireError{validationError(
				"fragments are not supported on root operations")}}, nil
		}
		if _, known := resolvers[field.Name]; !known {
			return &Result{Errors: []message.WireError{validationError(
				fmt.Sprintf("Cannot query field %q on type %q.", field.Name, rootType))}}, nil
		}
		fields = append(fields, field)
	}

	result := &Result{Data: make(map[string]any, len(fields))}

	for _, field := range fields {
		alias := field.Alias
		if alias == "" {
			alias = field.Name
		}

		args, err := coerceArguments(field, req.Variables)
		if err != nil {
			result.Data[alias] = nil
			result.Errors = append(result.Errors, validationError(err.Error()))
			continue
		}

		value, err := resolvers[field.Name](ctx, args, req.Principal)
		if err != nil {
			// Full detail stays in the log; the wire gets the bare
			// message with no stack or store context.
			e.logger.Error("resolver failed", "field", field.Name, "error", err)
			result.Data[alias] = nil
			result.Errors = append(result.Errors, message.WireError{
				Message:    publicMessage(err),
				Extensions: map[string]any{"code": message.CodeInternal},
			})
			continue
		}

		result.Data[alias] = value
	}

	return result, nil
}

// selectOperation picks the operation to run, honoring operationName.
func selectOperation(doc *ast.QueryDocument, operationName string) (*ast.OperationDefinition, *message.WireError) {
	if operationName != "" {
		for _, op := range doc.Operations {
			if op.Name == operationName {
				return op, nil
			}
		}
		we := validationError(fmt.Sprintf("operation %q is not defined in the document", operationName))
		return nil, &we
	}

	if len(doc.Operations) != 1 {
		we := validationError("operationName is required when the document defines multiple operations")
		return nil, &we
	}
	return doc.Operations[0], nil
}

// coerceArguments evaluates a field's literal and variable arguments.
func coerceArguments(field *ast.Field, variables map[string]any) (map[string]any, error) {
	if len(field.Arguments) == 0 {
		return nil, nil
	}

	vars := variables
	if vars == nil {
		vars = map[string]any{}
	}

	args := make(map[string]any, len(field.Arguments))
	for _, arg := range field.Arguments {
		value, err := arg.Value.Value(vars)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg.Name, err)
		}
		args[arg.Name] = value
	}
	return args, nil
}

func validationError(msg string) message.WireError {
	return message.WireError{
		Message:    msg,
		Extensions: map[string]any{"code": message.CodeValidation},
	}
}

// publicMessage keeps resolver error text terse on the wire. Anything
// that looks like wrapped infrastructure detail collapses to a generic
// message.
func publicMessage(err error) string {
	msg := err.Error()
	if strings.Contains(msg, ":") {
		return "Internal Server Error"
	}
	return msg
}
