package orders

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/orders/internal/cache"
	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// lookupNames запрашивает названия товаров в каталоге. Одновременные запросы
// с одинаковым набором id схлопываются в один вызов. Общий вызов не зависит от
// отмены контекста отдельного читателя и ограничен таймаутом клиента каталога;
// каждый читатель ждёт результат не дольше своего ctx.
func (o *Orchestrator) lookupNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := o.lookups.DoChan(lookupKey(ids), func() (interface{}, error) {
		return o.resolveNames(shared, ids)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[int64]string), nil
	case <-ctx.Done():
		return nil, domain.AsFailure(ctx.Err())
	}
}

func (o *Orchestrator) resolveNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	products, err := o.validateProducts(ctx, ids)

	names := make(map[int64]string, len(ids))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	if err == nil {
		o.rememberNames(ctx, names)
	}

	missing := missingNames(ids, names)
	if len(missing) == 0 {
		return names, nil
	}
	if !o.fallback {
		if err != nil {
			return nil, err
		}
		return nil, domain.ProductsNotFound(missing)
	}

	cached, cacheErr := o.names.Get(ctx, missing)
	if cacheErr != nil && !errors.Is(cacheErr, cache.ErrCacheMiss) {
		o.logger.WithError(cacheErr).Warn("product name cache read failed")
	}
	for id, name := range cached {
		names[id] = name
	}
	if still := missingNames(ids, names); len(still) > 0 {
		if err != nil {
			return nil, err
		}
		return nil, domain.ProductsNotFound(still)
	}

	o.logger.WithField("products", missing).Info("product names served from cache")
	return names, nil
}

// rememberNames сохраняет последние известные названия. Ошибка кеша не прерывает операцию.
func (o *Orchestrator) rememberNames(ctx context.Context, names map[int64]string) {
	if len(names) == 0 {
		return
	}
	if err := o.names.Set(ctx, names); err != nil {
		o.logger.WithError(err).Warn("product name cache write failed")
	}
}

func missingNames(ids []int64, names map[int64]string) []int64 {
	var missing []int64
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func lookupKey(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)

	var b strings.Builder
	for i, id := range sorted {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}
