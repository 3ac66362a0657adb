package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID is an opaque backend identifier. The backend issues numeric ids; both numbers and
// strings decode, and all-digit ids encode back as numbers.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if s != "" && isDigits(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (id ID) String() string { return string(id) }

func isDigits(s string) bool {
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CartItem is one raw cart row as stored by the backend.
type CartItem struct {
	ID        ID  `json:"id"`
	Quantity  int `json:"quantity"`
	ProductID ID  `json:"productId"`
	Product   *struct {
		ID ID `json:"id"`
	} `json:"product,omitempty"`
}

// ProductRef returns the product id whether the row carries it flat or nested.
func (c CartItem) ProductRef() ID {
	if c.ProductID != "" {
		return c.ProductID
	}
	if c.Product != nil {
		return c.Product.ID
	}
	return ""
}

type Product struct {
	ID               ID              `json:"id"`
	ProductName      string          `json:"productName"`
	BuyingPrice      decimal.Decimal `json:"buyingPrice"`
	ComparePrice     decimal.Decimal `json:"comparePrice"`
	SalePrice        decimal.Decimal `json:"salePrice"`
	Quantity         int             `json:"quantity"`
	ShortDescription string          `json:"shortDescription"`
}

type GalleryImage struct {
	ID          ID     `json:"id"`
	ImagePath   string `json:"imagePath"`
	IsThumbnail bool   `json:"isThumbnail"`
}

// StockCheckRequest asks the backend to re-validate stock for the chosen lines.
type StockCheckRequest struct {
	CustomerID  ID   `json:"customerId"`
	CartItemIDs []ID `json:"cartItemIds"`
}

type StockIssue struct {
	CartItemID        ID     `json:"cartItemId"`
	ProductName       string `json:"productName"`
	RequestedQuantity int    `json:"requestedQuantity"`
	AvailableQuantity int    `json:"availableQuantity"`
}

type StockCheckResult struct {
	Valid        bool         `json:"valid"`
	Message      string       `json:"message,omitempty"`
	InvalidItems []StockIssue `json:"invalidItems"`
}

const (
	DiscountPercentage = "PERCENTAGE"
	DiscountFixed      = "FIXED"
)

type Coupon struct {
	ID               ID               `json:"id"`
	Code             string           `json:"code"`
	DiscountValue    decimal.Decimal  `json:"discountValue"`
	DiscountType     string           `json:"discountType"`
	OrderAmountLimit *decimal.Decimal `json:"orderAmountLimit,omitempty"`
}

type CouponValidation struct {
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
	Coupon  *Coupon `json:"coupon,omitempty"`
}

// Address is the shipping block sent with a checkout and saved to the address book.
type Address struct {
	CustomerID  ID     `json:"customerId,omitempty"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Address     string `json:"address"`
	Ward        string `json:"ward"`
	District    string `json:"district"`
	Province    string `json:"province"`
	Note        string `json:"note,omitempty"`
}

type CheckoutItem struct {
	CartItemID ID              `json:"cartItemId,omitempty"`
	ProductID  ID              `json:"productId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}

type CheckoutRequest struct {
	CustomerID    ID             `json:"customerId"`
	ShippingInfo  Address        `json:"shippingInfo"`
	PaymentMethod string         `json:"paymentMethod"`
	CouponCode    string         `json:"couponCode,omitempty"`
	Items         []CheckoutItem `json:"items"`
}

type CheckoutResponse struct {
	OrderID        ID              `json:"orderId"`
	Message        string          `json:"message"`
	OriginalTotal  decimal.Decimal `json:"originalTotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
}

type PaymentRequest struct {
	OrderID   ID              `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	ReturnURL string          `json:"returnUrl,omitempty"`
}

type PaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

type Order struct {
	ID             ID              `json:"id"`
	Status         string          `json:"status"`
	OriginalTotal  decimal.Decimal `json:"originalTotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalTotal     decimal.Decimal `json:"finalTotal"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
}

type ClearSelectedRequest struct {
	CustomerID  ID   `json:"customerId"`
	CartItemIDs []ID `json:"cartItemIds"`
}

type Notification struct {
	CustomerID ID     `json:"customerId"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Type       string `json:"type"`
}
