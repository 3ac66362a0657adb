package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/shopspring/decimal"
)

type fakeBackend struct {
	mu         sync.Mutex
	items      []backend.CartItem
	itemsErr   error
	products   map[backend.ID]*backend.Product
	productErr map[backend.ID]error
	galleries  map[backend.ID][]backend.GalleryImage
	galleryErr map[backend.ID]error
	panicOn    backend.ID

	updated map[backend.ID]int
	deleted []backend.ID
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		products:   map[backend.ID]*backend.Product{},
		productErr: map[backend.ID]error{},
		galleries:  map[backend.ID][]backend.GalleryImage{},
		galleryErr: map[backend.ID]error{},
		updated:    map[backend.ID]int{},
	}
}

func (f *fakeBackend) addLine(lineID, productID backend.ID, qty int, name string, price int64, stock int) {
	f.items = append(f.items, backend.CartItem{ID: lineID, ProductID: productID, Quantity: qty})
	f.products[productID] = &backend.Product{
		ID:          productID,
		ProductName: name,
		BuyingPrice: decimal.NewFromInt(price),
		Quantity:    stock,
	}
}

func (f *fakeBackend) CartItems(context.Context, backend.ID) ([]backend.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	out := make([]backend.CartItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeBackend) Product(_ context.Context, id backend.ID) (*backend.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == f.panicOn && id != "" {
		panic("boom")
	}
	if err := f.productErr[id]; err != nil {
		return nil, err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeBackend) Gallery(_ context.Context, id backend.ID) ([]backend.GalleryImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.galleryErr[id]; err != nil {
		return nil, err
	}
	return f.galleries[id], nil
}

func (f *fakeBackend) UpdateCartItemQuantity(_ context.Context, id backend.ID, qty int) (*backend.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated[id] = qty
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Quantity = qty
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, errors.New("missing")
}

func (f *fakeBackend) DeleteCartItem(_ context.Context, id backend.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	kept := f.items[:0]
	for _, item := range f.items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	f.items = kept
	return nil
}

type countingRecorder struct {
	mu     sync.Mutex
	stages map[string]int
}

func (c *countingRecorder) IncReconcileFailure(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stages == nil {
		c.stages = map[string]int{}
	}
	c.stages[stage]++
}
