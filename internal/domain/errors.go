package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies data-access failures.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "configuration"
	KindConnection     ErrorKind = "connection"
	KindQueryExecution ErrorKind = "query_execution"
	KindSchema         ErrorKind = "schema"
)

// Kind sentinels. errors.Is(err, ErrConnection) matches any
// DataAccessError of that kind; errors.Is(err, ErrDataAccess) matches
// the whole family.
var (
	ErrDataAccess     = errors.New("data access error")
	ErrConfiguration  = errors.New("configuration error")
	ErrConnection     = errors.New("connection error")
	ErrQueryExecution = errors.New("query execution error")
	ErrSchema         = errors.New("schema error")
)

// DataAccessError is the family of errors adapters and the planner
// exchange. Every adapter failure is one of its four kinds, so callers
// may match broadly (ErrDataAccess) or per kind.
type DataAccessError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *DataAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// Is wires the kind sentinels into errors.Is chains.
func (e *DataAccessError) Is(target error) bool {
	switch target {
	case ErrDataAccess:
		return true
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrConnection:
		return e.Kind == KindConnection
	case ErrQueryExecution:
		return e.Kind == KindQueryExecution
	case ErrSchema:
		return e.Kind == KindSchema
	}
	return false
}

// Message is the human-readable text without the kind prefix, suitable
// for QueryResult.ErrorMessage.
func (e *DataAccessError) Message() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func ConfigurationError(format string, args ...any) *DataAccessError {
	return &DataAccessError{Kind: KindConfiguration, Msg: fmt.Sprintf(format, args...)}
}

func ConnectionError(msg string, err error) *DataAccessError {
	return &DataAccessError{Kind: KindConnection, Msg: msg, Err: err}
}

func QueryExecutionError(msg string, err error) *DataAccessError {
	return &DataAccessError{Kind: KindQueryExecution, Msg: msg, Err: err}
}

func SchemaError(msg string, err error) *DataAccessError {
	return &DataAccessError{Kind: KindSchema, Msg: msg, Err: err}
}
