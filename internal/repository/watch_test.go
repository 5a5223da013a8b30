package repository

import (
	"context"
	"testing"
	"time"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a stream emission")
	}
	var zero T
	return zero
}

func TestWatchFavoritesFollowsChanges(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	header, version := testInput(t, r)
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	favs := r.WatchFavorites(ctx)

	// Initial emission: nothing favorited yet.
	if got := recv(t, favs); len(got) != 0 {
		t.Fatalf("expected empty initial favorites, got %d", len(got))
	}

	if err := r.MarkFavorite(ctx, headerID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if got := recv(t, favs); len(got) != 1 || got[0].ID != headerID {
		t.Fatalf("expected the marked header in favorites, got %+v", got)
	}

	if err := r.RemoveFavorite(ctx, headerID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := recv(t, favs); len(got) != 0 {
		t.Fatalf("expected empty favorites after removal, got %d", len(got))
	}
}

func TestWatchIsFavorite(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	header, version := testInput(t, r)
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	flag := r.WatchIsFavorite(ctx, headerID)
	if recv(t, flag) {
		t.Fatal("expected not-favorite initially")
	}

	if err := r.MarkFavorite(ctx, headerID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !recv(t, flag) {
		t.Fatal("expected favorite after marking")
	}
}

func TestWatchHeaderByIDEmitsNilWhenMissing(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := r.WatchHeaderByID(ctx, "no-such-header")
	if got := recv(t, ch); got != nil {
		t.Fatalf("expected nil for a missing header, got %+v", got)
	}
}

func TestWatchVersionsForRecipe(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	header, version := testInput(t, r)
	headerID, err := r.CreateRecipe(ctx, header, version)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ch := r.WatchVersionsForRecipe(ctx, headerID)
	first := recv(t, ch)
	if len(first) != 1 {
		t.Fatalf("expected 1 version initially, got %d", len(first))
	}

	branch := first[0]
	branch.Name = "Vegan"
	branch.CreatedAt = first[0].CreatedAt + 1000
	hdr, err := r.GetHeaderByID(ctx, headerID)
	if err != nil {
		t.Fatalf("get header: %v", err)
	}
	if err := r.SaveAsNewVersion(ctx, *hdr, branch); err != nil {
		t.Fatalf("branch: %v", err)
	}

	second := recv(t, ch)
	if len(second) != 2 || second[0].Name != "Vegan" {
		t.Fatalf("expected the branch to surface first, got %+v", second)
	}
}

func TestWatchClosesOnCancel(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch := r.WatchHeaders(ctx)
	recv(t, ch) // drain the initial emission
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			// A buffered emission may race the close; the next read
			// must observe the closed channel.
			if _, ok := <-ch; ok {
				t.Fatal("expected channel closed after cancel")
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected channel to close after cancel")
	}
}
