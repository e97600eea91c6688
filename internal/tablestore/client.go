// Package tablestore is the generic table client the feature modules persist through.
//
// Callers address rows by table name and equality or IN filters; the client
// knows nothing about documents or tasks. Two variants exist: GormClient for a
// real database and NullClient for deployments without one.
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	// ErrNoRows is returned by Delete when no row matched the filters.
	ErrNoRows = errors.New("tablestore: no rows")
	// ErrMissingFilter guards against unscoped update/delete.
	ErrMissingFilter = errors.New("tablestore: write without filter")
	// ErrNotConfigured is returned by every write of the NullClient.
	ErrNotConfigured = errors.New("tablestore: no database configured")
)

// Op is the comparison a Filter applies.
type Op int

const (
	OpEq Op = iota
	OpIn
)

// Filter restricts a query to rows where Column matches Value.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// In builds a membership filter; values must be a slice.
func In(column string, values any) Filter { return Filter{Column: column, Op: OpIn, Value: values} }

// Preload names a nested association to load with the parent rows.
type Preload struct {
	Association string
	Order       string
}

// Query describes a Select.
type Query struct {
	Filters []Filter
	Order   string // e.g. "created_at desc"
	Limit   int
	Preload []Preload
}

// Client is the capability both feature modules depend on.
type Client interface {
	// Select loads matching rows into dest, a pointer to a slice of models.
	Select(ctx context.Context, table string, dest any, q Query) error
	// Insert creates rows (pointer to model or slice of models) and fills server ids.
	Insert(ctx context.Context, table string, rows any) error
	// Update applies patch to matching rows and returns the number affected.
	Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error)
	// Delete removes matching rows. Zero affected rows yields ErrNoRows.
	Delete(ctx context.Context, table string, model any, filters ...Filter) (int64, error)
}

// Observer receives one call per client operation.
type Observer interface {
	ObserveTableOp(table, op string, err error, elapsed time.Duration)
}

var (
	identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	orderRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*( (asc|desc))?(, ?[a-z_][a-z0-9_]*( (asc|desc))?)*$`)
)

func validate(table string, filters []Filter, order string) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("tablestore: invalid table name %q", table)
	}
	for _, f := range filters {
		if !identRe.MatchString(f.Column) {
			return fmt.Errorf("tablestore: invalid column %q", f.Column)
		}
	}
	if order != "" && !orderRe.MatchString(order) {
		return fmt.Errorf("tablestore: invalid order %q", order)
	}
	return nil
}
