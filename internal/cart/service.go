package cart

import (
	"context"
	"fmt"
	"slices"

	"github.com/angelmondragon/storefront-checkout/internal/selection"
	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/pricing"
	"github.com/shopspring/decimal"
)

type reconciler interface {
	Reconcile(ctx context.Context, customerID string) ([]Line, error)
}

// Mutator is the slice of the backend used to change cart rows.
type Mutator interface {
	CartItems(ctx context.Context, customerID backend.ID) ([]backend.CartItem, error)
	Product(ctx context.Context, productID backend.ID) (*backend.Product, error)
	UpdateCartItemQuantity(ctx context.Context, cartItemID backend.ID, quantity int) (*backend.CartItem, error)
	DeleteCartItem(ctx context.Context, cartItemID backend.ID) error
}

type selectionStore interface {
	Load(ctx context.Context, customerID string, cartLineIDs []string) (selection.Set, error)
	Toggle(ctx context.Context, customerID, id string) (selection.Set, error)
	Remove(ctx context.Context, customerID, id string) (selection.Set, error)
	SelectAll(ctx context.Context, customerID string, cartLineIDs []string) (selection.Set, error)
	Clear(ctx context.Context, customerID string) (selection.Set, error)
}

// Service exposes the shopper's cart with its checkout selection.
type Service interface {
	View(ctx context.Context, customerID string) (*View, error)
	Selected(ctx context.Context, customerID string) ([]Line, selection.Set, error)
	UpdateQuantity(ctx context.Context, customerID, lineID string, quantity int) (*View, error)
	RemoveLine(ctx context.Context, customerID, lineID string) (*View, error)
	Toggle(ctx context.Context, customerID, lineID string) (selection.Set, error)
	SelectAll(ctx context.Context, customerID string) (selection.Set, error)
	ClearSelection(ctx context.Context, customerID string) (selection.Set, error)
}

// View is the reconciled cart as the storefront renders it.
type View struct {
	Lines            []Line          `json:"lines"`
	SelectedIDs      selection.Set   `json:"selected_ids"`
	SelectedCount    int             `json:"selected_count"`
	SelectedQuantity int             `json:"selected_quantity"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	SubtotalDisplay  string          `json:"subtotal_display"`
}

type service struct {
	engine    reconciler
	backend   Mutator
	selection selectionStore
}

func NewService(engine reconciler, mutator Mutator, store selectionStore) (Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("reconciliation engine required")
	}
	if mutator == nil {
		return nil, fmt.Errorf("cart mutator required")
	}
	if store == nil {
		return nil, fmt.Errorf("selection store required")
	}
	return &service{engine: engine, backend: mutator, selection: store}, nil
}

func (s *service) View(ctx context.Context, customerID string) (*View, error) {
	lines, err := s.engine.Reconcile(ctx, customerID)
	if err != nil {
		return nil, err
	}
	selected, err := s.selection.Load(ctx, customerID, LineIDs(lines))
	if err != nil {
		return nil, err
	}
	return buildView(lines, selected), nil
}

// Selected reconciles the cart and returns only the selected lines, in cart order.
func (s *service) Selected(ctx context.Context, customerID string) ([]Line, selection.Set, error) {
	lines, err := s.engine.Reconcile(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	selected, err := s.selection.Load(ctx, customerID, LineIDs(lines))
	if err != nil {
		return nil, nil, err
	}
	return filterSelected(lines, selected), selected, nil
}

func (s *service) UpdateQuantity(ctx context.Context, customerID, lineID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"quantity": "must be at least 1"})
	}

	item, err := s.ownedItem(ctx, customerID, lineID)
	if err != nil {
		return nil, err
	}
	product, err := s.backend.Product(ctx, item.ProductRef())
	if err != nil {
		return nil, err
	}
	if quantity > product.Quantity {
		msg := fmt.Sprintf("only %d of %s in stock", product.Quantity, product.ProductName)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msg).
			WithDetails(map[string]any{"quantity": msg, "available": product.Quantity})
	}

	if _, err := s.backend.UpdateCartItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, err
	}
	return s.View(ctx, customerID)
}

func (s *service) RemoveLine(ctx context.Context, customerID, lineID string) (*View, error) {
	item, err := s.ownedItem(ctx, customerID, lineID)
	if err != nil {
		return nil, err
	}
	if err := s.backend.DeleteCartItem(ctx, item.ID); err != nil {
		return nil, err
	}
	if _, err := s.selection.Remove(ctx, customerID, lineID); err != nil {
		return nil, err
	}
	return s.View(ctx, customerID)
}

func (s *service) Toggle(ctx context.Context, customerID, lineID string) (selection.Set, error) {
	ids, err := s.cartLineIDs(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ids, lineID) {
		return nil, lineNotFound(lineID)
	}
	if _, err := s.selection.Load(ctx, customerID, ids); err != nil {
		return nil, err
	}
	return s.selection.Toggle(ctx, customerID, lineID)
}

func (s *service) SelectAll(ctx context.Context, customerID string) (selection.Set, error) {
	ids, err := s.cartLineIDs(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.selection.SelectAll(ctx, customerID, ids)
}

func (s *service) ClearSelection(ctx context.Context, customerID string) (selection.Set, error) {
	return s.selection.Clear(ctx, customerID)
}

func (s *service) cartLineIDs(ctx context.Context, customerID string) ([]string, error) {
	items, err := s.backend.CartItems(ctx, backend.ID(customerID))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID.String())
	}
	return ids, nil
}

// ownedItem makes sure lineID belongs to the customer's cart before it is mutated.
func (s *service) ownedItem(ctx context.Context, customerID, lineID string) (*backend.CartItem, error) {
	items, err := s.backend.CartItems(ctx, backend.ID(customerID))
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID.String() == lineID {
			return &items[i], nil
		}
	}
	return nil, lineNotFound(lineID)
}

func lineNotFound(lineID string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
		WithDetails(map[string]any{"line_id": lineID})
}

func filterSelected(lines []Line, selected selection.Set) []Line {
	out := make([]Line, 0, len(selected))
	for _, line := range lines {
		if selected.Contains(line.ID) {
			out = append(out, line)
		}
	}
	return out
}

func buildView(lines []Line, selected selection.Set) *View {
	chosen := filterSelected(lines, selected)
	quantity := 0
	for _, line := range chosen {
		quantity += line.Quantity
	}
	subtotal := Subtotal(chosen)
	return &View{
		Lines:            lines,
		SelectedIDs:      selected,
		SelectedCount:    len(chosen),
		SelectedQuantity: quantity,
		Subtotal:         subtotal,
		SubtotalDisplay:  pricing.FormatVND(subtotal),
	}
}
