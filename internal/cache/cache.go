package cache

import (
	"context"
	"errors"
)

// ProductNames хранит последние известные названия товаров.
type ProductNames interface {
	// Get возвращает найденные названия; отсутствующие id просто не попадают в ответ.
	Get(ctx context.Context, ids []int64) (map[int64]string, error)
	Set(ctx context.Context, names map[int64]string) error
}

// ErrCacheMiss означает, что ни одного из запрошенных названий в кеше нет.
var ErrCacheMiss = errors.New("cache miss")

// Noop: кеш, который ничего не хранит.
type Noop struct{}

func (Noop) Get(context.Context, []int64) (map[int64]string, error) { return nil, ErrCacheMiss }

func (Noop) Set(context.Context, map[int64]string) error { return nil }
