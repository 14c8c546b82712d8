package docstore

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrKind classifies store failures for the persistence router. NotFound is
// deliberately absent from read results (Read returns nil, nil); it only
// appears when an operation requires an existing document.
type ErrKind string

const (
	ErrKindConnectivity ErrKind = "connectivity"
	ErrKindPermission   ErrKind = "permission"
	ErrKindValidation   ErrKind = "validation"
	ErrKindNotFound     ErrKind = "not_found"
	ErrKindInternal     ErrKind = "internal"
)

type StoreError struct {
	Kind  ErrKind
	Op    string
	Path  string
	DocID string
	Err   error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "document store error"
	}
	target := e.Path
	if e.DocID != "" {
		target = e.Path + "/" + e.DocID
	}
	if e.Err != nil {
		return fmt.Sprintf("docstore %s %s: %s: %v", e.Op, target, e.Kind, e.Err)
	}
	return fmt.Sprintf("docstore %s %s: %s", e.Op, target, e.Kind)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func KindOf(err error) ErrKind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

func IsConnectivity(err error) bool { return KindOf(err) == ErrKindConnectivity }
func IsPermission(err error) bool   { return KindOf(err) == ErrKindPermission }
func IsValidation(err error) bool   { return KindOf(err) == ErrKindValidation }
func IsNotFound(err error) bool     { return KindOf(err) == ErrKindNotFound }

func wrapErr(op, path, docID string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Kind: classify(err), Op: op, Path: path, DocID: docID, Err: err}
}

func validationErr(op, path, docID string, err error) error {
	return &StoreError{Kind: ErrKindValidation, Op: op, Path: path, DocID: docID, Err: err}
}

func notFoundErr(op, path, docID string) error {
	return &StoreError{
		Kind: ErrKindNotFound, Op: op, Path: path, DocID: docID,
		Err: errors.New("document does not exist"),
	}
}

// classify maps driver-level failures onto the store taxonomy. SQLSTATE
// class 08 is connection-level, 28/42501 are authorization, 22/23 are data
// and constraint violations.
func classify(err error) ErrKind {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		code := pgErr.Code
		switch {
		case len(code) >= 2 && code[:2] == "08":
			return ErrKindConnectivity
		case len(code) >= 2 && code[:2] == "28", code == "42501":
			return ErrKindPermission
		case len(code) >= 2 && (code[:2] == "22" || code[:2] == "23"):
			return ErrKindValidation
		}
		return ErrKindInternal
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded):
		return ErrKindConnectivity
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrKindNotFound
	default:
		return ErrKindInternal
	}
}
