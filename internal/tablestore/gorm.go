package tablestore

import (
	"context"
	"errors"
	"reflect"

	"gorm.io/gorm"
)

// GormClient implements Client over a gorm connection (PostgreSQL or SQLite).
type GormClient struct {
	db *gorm.DB
}

// NewGormClient wraps db.
func NewGormClient(db *gorm.DB) *GormClient {
	return &GormClient{db: db}
}

// DB exposes the underlying connection for health checks.
func (c *GormClient) DB() *gorm.DB { return c.db }

func scope(tx *gorm.DB, filters []Filter) *gorm.DB {
	for _, f := range filters {
		switch f.Op {
		case OpIn:
			tx = tx.Where(f.Column+" IN ?", f.Value)
		default:
			tx = tx.Where(f.Column+" = ?", f.Value)
		}
	}
	return tx
}

func (c *GormClient) Select(ctx context.Context, table string, dest any, q Query) error {
	if err := validate(table, q.Filters, q.Order); err != nil {
		return err
	}
	tx := scope(c.db.WithContext(ctx).Table(table), q.Filters)
	for _, p := range q.Preload {
		if p.Order == "" {
			tx = tx.Preload(p.Association)
			continue
		}
		order := p.Order
		if err := validate(table, nil, order); err != nil {
			return err
		}
		tx = tx.Preload(p.Association, func(db *gorm.DB) *gorm.DB { return db.Order(order) })
	}
	if q.Order != "" {
		tx = tx.Order(q.Order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	return tx.Find(dest).Error
}

func (c *GormClient) Insert(ctx context.Context, table string, rows any) error {
	if err := validate(table, nil, ""); err != nil {
		return err
	}
	if isEmptySlice(rows) {
		return nil
	}
	return c.db.WithContext(ctx).Table(table).Create(rows).Error
}

func (c *GormClient) Update(ctx context.Context, table string, patch map[string]any, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, ErrMissingFilter
	}
	if err := validate(table, filters, ""); err != nil {
		return 0, err
	}
	res := scope(c.db.WithContext(ctx).Table(table), filters).Updates(patch)
	return res.RowsAffected, res.Error
}

func (c *GormClient) Delete(ctx context.Context, table string, model any, filters ...Filter) (int64, error) {
	if len(filters) == 0 {
		return 0, ErrMissingFilter
	}
	if err := validate(table, filters, ""); err != nil {
		return 0, err
	}
	res := scope(c.db.WithContext(ctx).Table(table), filters).Delete(model)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return 0, ErrNoRows
		}
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNoRows
	}
	return res.RowsAffected, nil
}

func isEmptySlice(v any) bool {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Slice && rv.Len() == 0
}
