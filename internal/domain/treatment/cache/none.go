package cache

import "context"

type noneStore struct{}

// NewNone returns a store that never remembers anything.
func NewNone() Store { return noneStore{} }

func (noneStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (noneStore) Set(context.Context, string, string) error { return nil }

func (noneStore) Stats(context.Context) (map[string]any, error) {
	return map[string]any{"type": DriverNone}, nil
}

func (noneStore) Close(context.Context) error { return nil }
