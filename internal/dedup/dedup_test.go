package dedup_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodie-labs/ingest/internal/dedup"
	"github.com/hodie-labs/ingest/internal/testdb"
	"github.com/hodie-labs/ingest/pkg/digest"
)

var at = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newIndex(t *testing.T) dedup.Index {
	t.Helper()
	return dedup.New(testdb.Open(t), testdb.Logger())
}

func TestReserveTwice(t *testing.T) {
	x := newIndex(t)
	ctx := context.Background()
	d := digest.Sum([]byte("glucose,95,mg/dL"))

	first := uuid.New()
	r, err := x.Reserve(ctx, "tenant-a", d, first, at)
	require.NoError(t, err)
	assert.True(t, r.Reserved)

	r, err = x.Reserve(ctx, "tenant-a", d, uuid.New(), at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, r.Reserved)
	assert.Equal(t, first, r.OriginalUploadID)
	assert.True(t, at.Equal(r.OriginalReceivedAt), "got %s", r.OriginalReceivedAt)
}

func TestReserveIsPerTenant(t *testing.T) {
	x := newIndex(t)
	ctx := context.Background()
	d := digest.Sum([]byte("same bytes"))

	a, err := x.Reserve(ctx, "tenant-a", d, uuid.New(), at)
	require.NoError(t, err)
	b, err := x.Reserve(ctx, "tenant-b", d, uuid.New(), at)
	require.NoError(t, err)

	assert.True(t, a.Reserved)
	assert.True(t, b.Reserved)
}

func TestReserveConcurrent(t *testing.T) {
	x := newIndex(t)
	ctx := context.Background()
	d := digest.Sum([]byte("race"))

	const callers = 16
	var reserved atomic.Int32
	originals := make(chan uuid.UUID, callers)
	var wg sync.WaitGroup

	for range callers {
		wg.Go(func() {
			r, err := x.Reserve(ctx, "tenant-a", d, uuid.New(), at)
			if !assert.NoError(t, err) {
				return
			}
			if r.Reserved {
				reserved.Add(1)
				return
			}
			originals <- r.OriginalUploadID
		})
	}
	wg.Wait()
	close(originals)

	assert.Equal(t, int32(1), reserved.Load())

	holder, err := x.Lookup(ctx, "tenant-a", d)
	require.NoError(t, err)
	for id := range originals {
		assert.Equal(t, holder.OriginalUploadID, id)
	}
}

func TestRelease(t *testing.T) {
	x := newIndex(t)
	ctx := context.Background()
	d := digest.Sum([]byte("release me"))
	owner := uuid.New()

	_, err := x.Reserve(ctx, "tenant-a", d, owner, at)
	require.NoError(t, err)

	t.Run("other upload cannot release", func(t *testing.T) {
		require.NoError(t, x.Release(ctx, "tenant-a", d, uuid.New()))
		_, err := x.Lookup(ctx, "tenant-a", d)
		assert.NoError(t, err)
	})

	t.Run("owner releases", func(t *testing.T) {
		require.NoError(t, x.Release(ctx, "tenant-a", d, owner))
		_, err := x.Lookup(ctx, "tenant-a", d)
		assert.ErrorIs(t, err, dedup.ErrNotFound)
	})

	t.Run("content can be reserved again", func(t *testing.T) {
		r, err := x.Reserve(ctx, "tenant-a", d, uuid.New(), at)
		require.NoError(t, err)
		assert.True(t, r.Reserved)
	})
}

func TestValidation(t *testing.T) {
	x := newIndex(t)
	ctx := context.Background()

	_, err := x.Reserve(ctx, "", digest.Sum(nil), uuid.New(), at)
	assert.ErrorIs(t, err, dedup.ErrInvalidTenant)

	_, err = x.Reserve(ctx, "tenant-a", "", uuid.New(), at)
	assert.ErrorIs(t, err, dedup.ErrInvalidDigest)
}
