package tablestore

import "context"

// NullClient is selected when no database is configured. Reads see an empty
// store and writes fail with ErrNotConfigured.
type NullClient struct{}

func (NullClient) Select(context.Context, string, any, Query) error { return nil }

func (NullClient) Insert(context.Context, string, any) error { return ErrNotConfigured }

func (NullClient) Update(context.Context, string, map[string]any, ...Filter) (int64, error) {
	return 0, ErrNotConfigured
}

func (NullClient) Delete(context.Context, string, any, ...Filter) (int64, error) {
	return 0, ErrNotConfigured
}
