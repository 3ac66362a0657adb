package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// CustomerID accepts either a JSON string or number; the backend issues numeric ids.
type CustomerID string

func (c *CustomerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CustomerID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("customer id must be a string or number: %w", err)
	}
	*c = CustomerID(n.String())
	return nil
}

// CustomerClaims is the shopper token issued by the storefront backend.
type CustomerClaims struct {
	CustomerID CustomerID `json:"customer_id,omitempty"`
	Email      string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Customer resolves the customer identity, falling back to the subject claim.
func (c *CustomerClaims) Customer() string {
	if id := strings.TrimSpace(string(c.CustomerID)); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}
