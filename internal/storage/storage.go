package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("record not found")

// Storage persists named records. Every write is durable once Put returns.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Prefixed scopes every key of the underlying storage under prefix.
// The bot uses it to give each chat its own record namespace.
type Prefixed struct {
	Storage
	prefix string
}

func WithPrefix(s Storage, prefix string) *Prefixed {
	return &Prefixed{Storage: s, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.Storage.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Put(ctx context.Context, key string, value []byte) error {
	return p.Storage.Put(ctx, p.prefix+key, value)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.Storage.Delete(ctx, p.prefix+key)
}

// Close is a no-op: the underlying storage is shared and closed by its owner.
func (p *Prefixed) Close() error {
	return nil
}
