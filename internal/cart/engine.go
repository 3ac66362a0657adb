package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFanOut      = 8
	defaultPlaceholder = "/images/placeholder.png"
)

// Catalog is the slice of the backend the reconciliation needs.
type Catalog interface {
	CartItems(ctx context.Context, customerID backend.ID) ([]backend.CartItem, error)
	Product(ctx context.Context, productID backend.ID) (*backend.Product, error)
	Gallery(ctx context.Context, productID backend.ID) ([]backend.GalleryImage, error)
}

type failureRecorder interface {
	IncReconcileFailure(stage string)
}

// Engine joins raw cart rows with live product and gallery data.
type Engine struct {
	catalog     Catalog
	logg        *logger.Logger
	metrics     failureRecorder
	fanOut      int
	placeholder string
}

// EngineOption tunes an Engine.
type EngineOption func(*Engine)

func WithFanOut(limit int) EngineOption {
	return func(e *Engine) {
		if limit > 0 {
			e.fanOut = limit
		}
	}
}

func WithPlaceholder(path string) EngineOption {
	return func(e *Engine) {
		if strings.TrimSpace(path) != "" {
			e.placeholder = path
		}
	}
}

func WithFailureRecorder(rec failureRecorder) EngineOption {
	return func(e *Engine) {
		e.metrics = rec
	}
}

func NewEngine(catalog Catalog, logg *logger.Logger, opts ...EngineOption) (*Engine, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	e := &Engine{
		catalog:     catalog,
		logg:        logg,
		fanOut:      defaultFanOut,
		placeholder: defaultPlaceholder,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

// Reconcile fetches the customer's cart and joins every row concurrently. A row whose product
// cannot be loaded is dropped; a row whose gallery cannot be loaded gets the placeholder image.
// Only the cart listing itself can fail the call. Lines keep the backend's order.
func (e *Engine) Reconcile(ctx context.Context, customerID string) ([]Line, error) {
	items, err := e.catalog.CartItems(ctx, backend.ID(customerID))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []Line{}, nil
	}

	joined := make([]*Line, len(items))
	var g errgroup.Group
	g.SetLimit(e.fanOut)
	for i, item := range items {
		g.Go(func() error {
			joined[i] = e.join(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	lines := make([]Line, 0, len(items))
	for _, line := range joined {
		if line != nil {
			lines = append(lines, *line)
		}
	}
	return lines, nil
}

func (e *Engine) join(ctx context.Context, item backend.CartItem) (line *Line) {
	ctx = e.logg.WithFields(ctx, map[string]any{
		"cart_item_id": item.ID.String(),
		"product_id":   item.ProductRef().String(),
	})
	defer func() {
		if r := recover(); r != nil {
			e.logg.Error(ctx, "cart line join panicked", fmt.Errorf("panic: %v", r))
			e.recordFailure("product")
			line = nil
		}
	}()

	productID := item.ProductRef()
	if productID == "" {
		e.logg.Warn(ctx, "cart line has no product reference, dropping")
		e.recordFailure("product")
		return nil
	}

	images := make(chan string, 1)
	go func() {
		images <- e.galleryImage(ctx, productID)
	}()

	product, err := e.catalog.Product(ctx, productID)
	image := <-images
	if err != nil {
		e.logg.Error(ctx, "cart line product join failed, dropping line", err)
		e.recordFailure("product")
		return nil
	}

	return &Line{
		ID:       item.ID.String(),
		Quantity: item.Quantity,
		Product: Product{
			ID:               product.ID.String(),
			ProductName:      product.ProductName,
			BuyingPrice:      product.BuyingPrice,
			ComparePrice:     product.ComparePrice,
			SalePrice:        product.SalePrice,
			Quantity:         product.Quantity,
			ShortDescription: product.ShortDescription,
			GalleryImage:     image,
		},
	}
}

// galleryImage prefers the thumbnail, then the first image, then the placeholder.
func (e *Engine) galleryImage(ctx context.Context, productID backend.ID) (image string) {
	defer func() {
		if r := recover(); r != nil {
			e.recordFailure("gallery")
			image = e.placeholder
		}
	}()

	gallery, err := e.catalog.Gallery(ctx, productID)
	if err != nil {
		e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "gallery lookup failed, using placeholder")
		e.recordFailure("gallery")
		return e.placeholder
	}

	first := ""
	for _, img := range gallery {
		if strings.TrimSpace(img.ImagePath) == "" {
			continue
		}
		if img.IsThumbnail {
			return img.ImagePath
		}
		if first == "" {
			first = img.ImagePath
		}
	}
	if first != "" {
		return first
	}
	return e.placeholder
}

func (e *Engine) recordFailure(stage string) {
	if e.metrics != nil {
		e.metrics.IncReconcileFailure(stage)
	}
}
