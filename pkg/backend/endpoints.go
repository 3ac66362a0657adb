package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

func escape(id ID) string {
	return url.PathEscape(string(id))
}

// CartItems lists the raw cart rows for a customer.
func (c *Client) CartItems(ctx context.Context, customerID ID) ([]CartItem, error) {
	var items []CartItem
	if err := c.do(ctx, "cart_items.list", http.MethodGet, "/api/cart-items/customer/"+escape(customerID), nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) UpdateCartItemQuantity(ctx context.Context, cartItemID ID, quantity int) (*CartItem, error) {
	var item CartItem
	body := map[string]int{"quantity": quantity}
	if err := c.do(ctx, "cart_items.update", http.MethodPut, "/api/cart-items/"+escape(cartItemID), body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteCartItem(ctx context.Context, cartItemID ID) error {
	return c.do(ctx, "cart_items.delete", http.MethodDelete, "/api/cart-items/"+escape(cartItemID), nil, nil)
}

// ClearSelected removes checked-out lines from the server-side cart.
func (c *Client) ClearSelected(ctx context.Context, req ClearSelectedRequest) error {
	return c.do(ctx, "cart_items.clear_selected", http.MethodDelete, "/api/cart-items/clear-selected", req, nil)
}

func (c *Client) ValidateSelected(ctx context.Context, req StockCheckRequest) (*StockCheckResult, error) {
	var result StockCheckResult
	if err := c.do(ctx, "cart_items.validate_selected", http.MethodPost, "/api/cart-items/validate-selected", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Product(ctx context.Context, productID ID) (*Product, error) {
	var product Product
	if err := c.do(ctx, "products.get", http.MethodGet, "/api/products/"+escape(productID), nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) Gallery(ctx context.Context, productID ID) ([]GalleryImage, error) {
	var images []GalleryImage
	if err := c.do(ctx, "gallery.by_product", http.MethodGet, "/api/gallery/product/"+escape(productID), nil, &images); err != nil {
		return nil, err
	}
	return images, nil
}

// ValidateCoupon checks code against orderAmount. A rejected coupon usually comes back as a 4xx
// whose message is kept on the error (see errors.UpstreamMessage).
func (c *Client) ValidateCoupon(ctx context.Context, code string, orderAmount decimal.Decimal) (*CouponValidation, error) {
	var result CouponValidation
	body := map[string]any{"code": code, "orderAmount": orderAmount}
	if err := c.do(ctx, "coupons.validate", http.MethodPost, "/api/coupons/validate", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	var result CheckoutResponse
	if err := c.do(ctx, "orders.checkout", http.MethodPost, "/api/orders/checkout", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	var result PaymentResponse
	if err := c.do(ctx, "payments.vnpay_create", http.MethodPost, "/api/payments/vnpay/create", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Order(ctx context.Context, orderID ID) (*Order, error) {
	var order Order
	if err := c.do(ctx, "orders.get", http.MethodGet, "/api/orders/"+escape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) SaveAddress(ctx context.Context, address Address) error {
	return c.do(ctx, "addresses.create", http.MethodPost, "/api/addresses", address, nil)
}

func (c *Client) Notify(ctx context.Context, n Notification) error {
	return c.do(ctx, "notifications.create", http.MethodPost, "/api/notifications", n, nil)
}
