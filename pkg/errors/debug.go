package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// transaction failures Postgres expects the client to replay
const (
	sqlstateSerialization = "40001"
	sqlstateDeadlock      = "40P01"
)

// PGDiagnostic is the part of a Postgres error worth logging, read from
// whichever driver produced it.
type PGDiagnostic struct {
	Code       string `json:"code"`
	Severity   string `json:"severity,omitempty"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Hint       string `json:"hint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

// Retryable reports a serialization failure or deadlock; the transaction
// can be replayed as is.
func (p PGDiagnostic) Retryable() bool {
	return p.Code == sqlstateSerialization || p.Code == sqlstateDeadlock
}

func postgresDiagnostic(err error) (PGDiagnostic, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGDiagnostic{
			Code:       pgxErr.Code,
			Severity:   pgxErr.Severity,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Hint:       pgxErr.Hint,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Constraint: pgxErr.ConstraintName,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDiagnostic{
			Code:       string(pqErr.Code),
			Severity:   pqErr.Severity,
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Hint:       pqErr.Hint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Constraint: pqErr.Constraint,
		}, true
	}
	return PGDiagnostic{}, false
}

// ErrorDump flattens an error chain for structured logs.
type ErrorDump struct {
	Message  string        `json:"message"`
	Code     Code          `json:"code,omitempty"`
	Chain    []string      `json:"chain,omitempty"`
	Postgres *PGDiagnostic `json:"postgres,omitempty"`
}

const maxChainDepth = 12

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil && len(d.Chain) < maxChainDepth; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T", e))
	}
	if diag, ok := postgresDiagnostic(err); ok {
		d.Postgres = &diag
	}
	return d
}

// Fields returns the dump as logger fields. Postgres detail is nested under
// "pg" and omitted for errors that never reached the database.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_chain": d.Chain,
	}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if d.Postgres != nil {
		fields["pg"] = *d.Postgres
		if d.Postgres.Retryable() {
			fields["pg_retryable"] = true
		}
	}
	return fields
}
