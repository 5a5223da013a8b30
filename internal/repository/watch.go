package repository

import (
	"context"
	"errors"

	"github.com/kbenzarti/forkbook/internal/domain"
)

// Watch streams: each subscription runs its query once immediately, then
// re-runs it whenever the store broadcasts a change, pushing fresh results
// to the channel. UI state stays live without polling. Channels close when
// ctx is cancelled.

// watchQuery is the shared re-query loop behind every Watch method.
func watchQuery[T any](ctx context.Context, r *Repository, query func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)
	changes := r.store.Watch(ctx)

	emit := func() bool {
		v, err := query(ctx)
		if err != nil {
			r.log.Error("watch query: %v", err)
			return true
		}
		select {
		case out <- v:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)
		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()
	return out
}

// WatchHeaders streams the full header list.
func (r *Repository) WatchHeaders(ctx context.Context) <-chan []domain.RecipeHeader {
	return watchQuery(ctx, r, r.GetHeaders)
}

// WatchFavorites streams the favorites-only header list.
func (r *Repository) WatchFavorites(ctx context.Context) <-chan []domain.RecipeHeader {
	return watchQuery(ctx, r, func(ctx context.Context) ([]domain.RecipeHeader, error) {
		rows, err := r.store.FavoriteHeadersWithCategory(ctx)
		if err != nil {
			return nil, classify(err)
		}
		return assembleHeaders(rows), nil
	})
}

// WatchHeaderByID streams a single header. A missing header is pushed as
// nil: a valid empty state, not an error.
func (r *Repository) WatchHeaderByID(ctx context.Context, id string) <-chan *domain.RecipeHeader {
	return watchQuery(ctx, r, func(ctx context.Context) (*domain.RecipeHeader, error) {
		h, err := r.GetHeaderByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return h, err
	})
}

// WatchVersionsForRecipe streams the assembled versions of a header.
func (r *Repository) WatchVersionsForRecipe(ctx context.Context, headerID string) <-chan []domain.RecipeVersion {
	return watchQuery(ctx, r, func(ctx context.Context) ([]domain.RecipeVersion, error) {
		return r.GetVersionsForRecipe(ctx, headerID)
	})
}

// WatchIsFavorite streams whether a header is currently favorite. Derived
// by filtering the favorites query, so favorite status never costs an
// extra per-header round-trip.
func (r *Repository) WatchIsFavorite(ctx context.Context, headerID string) <-chan bool {
	return watchQuery(ctx, r, func(ctx context.Context) (bool, error) {
		rows, err := r.store.FavoriteHeadersWithCategory(ctx)
		if err != nil {
			return false, classify(err)
		}
		for _, row := range rows {
			if row.Header.ID == headerID {
				return true, nil
			}
		}
		return false, nil
	})
}
