package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileIsolatesProductFailures(t *testing.T) {
	fake := newFakeBackend()
	fake.addLine("1", "p1", 1, "Tea", 100, 5)
	fake.addLine("2", "p2", 1, "Coffee", 200, 5)
	fake.addLine("3", "p3", 2, "Cocoa", 300, 5)
	fake.productErr["p2"] = errors.New("product service exploded")
	rec := &countingRecorder{}

	engine, err := NewEngine(fake, logger.Nop(), WithFailureRecorder(rec))
	require.NoError(t, err)

	lines, err := engine.Reconcile(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0].ID)
	assert.Equal(t, "3", lines[1].ID)
	assert.Equal(t, 1, rec.stages["product"])
}

func TestReconcileRecoversPanickingJoin(t *testing.T) {
	fake := newFakeBackend()
	fake.addLine("1", "p1", 1, "Tea", 100, 5)
	fake.addLine("2", "p2", 1, "Coffee", 200, 5)
	fake.panicOn = "p1"

	engine, err := NewEngine(fake, logger.Nop())
	require.NoError(t, err)

	lines, err := engine.Reconcile(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "2", lines[0].ID)
}

func TestReconcileGalleryFallbacks(t *testing.T) {
	fake := newFakeBackend()
	fake.addLine("1", "p1", 1, "Thumb", 100, 5)
	fake.addLine("2", "p2", 1, "First", 100, 5)
	fake.addLine("3", "p3", 1, "Empty", 100, 5)
	fake.addLine("4", "p4", 1, "Broken", 100, 5)
	fake.galleries["p1"] = []backend.GalleryImage{{ImagePath: "/a.png"}, {ImagePath: "/thumb.png", IsThumbnail: true}}
	fake.galleries["p2"] = []backend.GalleryImage{{ImagePath: ""}, {ImagePath: "/first.png"}, {ImagePath: "/second.png"}}
	fake.galleryErr["p4"] = errors.New("gallery down")
	rec := &countingRecorder{}

	engine, err := NewEngine(fake, logger.Nop(), WithPlaceholder("/img/none.png"), WithFailureRecorder(rec), WithFanOut(2))
	require.NoError(t, err)

	lines, err := engine.Reconcile(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, "/thumb.png", lines[0].Product.GalleryImage)
	assert.Equal(t, "/first.png", lines[1].Product.GalleryImage)
	assert.Equal(t, "/img/none.png", lines[2].Product.GalleryImage)
	assert.Equal(t, "/img/none.png", lines[3].Product.GalleryImage)
	assert.Equal(t, 1, rec.stages["gallery"])
}

func TestReconcilePreservesOrderUnderFanOut(t *testing.T) {
	fake := newFakeBackend()
	ids := []backend.ID{"9", "3", "7", "1", "5", "2", "8"}
	for _, id := range ids {
		fake.addLine(id, "p"+id, 1, "Item "+string(id), 10, 5)
	}

	engine, err := NewEngine(fake, logger.Nop(), WithFanOut(3))
	require.NoError(t, err)

	lines, err := engine.Reconcile(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, lines, len(ids))
	for i, id := range ids {
		assert.Equal(t, string(id), lines[i].ID)
	}
}

func TestReconcileEmptyAndListFailure(t *testing.T) {
	fake := newFakeBackend()
	engine, err := NewEngine(fake, logger.Nop())
	require.NoError(t, err)

	lines, err := engine.Reconcile(context.Background(), "42")
	require.NoError(t, err)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)

	fake.itemsErr = errors.New("cart service down")
	_, err = engine.Reconcile(context.Background(), "42")
	assert.Error(t, err)
}

func TestNewEngineRequiresCatalog(t *testing.T) {
	_, err := NewEngine(nil, logger.Nop())
	assert.Error(t, err)
}
