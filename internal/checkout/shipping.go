package checkout

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/go-playground/validator/v10"
)

const (
	PaymentCOD   = "COD"
	PaymentVNPay = "VNPAY"
)

var vnMobilePattern = regexp.MustCompile(`^(0|\+84)(3|5|7|8|9)[0-9]{8}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("vnmobile", func(fl validator.FieldLevel) bool {
		return vnMobilePattern.MatchString(fl.Field().String())
	})
	return v
}

// ShippingInfo is where the order goes.
type ShippingInfo struct {
	FullName    string `json:"full_name" validate:"required,min=2"`
	PhoneNumber string `json:"phone_number" validate:"required,vnmobile"`
	Address     string `json:"address" validate:"required,min=5"`
	Ward        string `json:"ward" validate:"required"`
	District    string `json:"district" validate:"required"`
	Province    string `json:"province" validate:"required"`
	Note        string `json:"note,omitempty" validate:"max=500"`
}

// Normalize trims every field.
func (s ShippingInfo) Normalize() ShippingInfo {
	return ShippingInfo{
		FullName:    strings.TrimSpace(s.FullName),
		PhoneNumber: strings.ReplaceAll(strings.TrimSpace(s.PhoneNumber), " ", ""),
		Address:     strings.TrimSpace(s.Address),
		Ward:        strings.TrimSpace(s.Ward),
		District:    strings.TrimSpace(s.District),
		Province:    strings.TrimSpace(s.Province),
		Note:        strings.TrimSpace(s.Note),
	}
}

func (s ShippingInfo) toBackend(customerID string) backend.Address {
	return backend.Address{
		CustomerID:  backend.ID(customerID),
		FullName:    s.FullName,
		PhoneNumber: s.PhoneNumber,
		Address:     s.Address,
		Ward:        s.Ward,
		District:    s.District,
		Province:    s.Province,
		Note:        s.Note,
	}
}

// SubmitInput is what the shopper submits from the checkout form.
type SubmitInput struct {
	ShippingInfo  ShippingInfo `json:"shipping_info"`
	PaymentMethod string       `json:"payment_method" validate:"required,oneof=COD VNPAY"`
	SaveAddress   bool         `json:"save_address"`
}

// Normalize trims the shipping block and upper-cases the payment method.
func (in SubmitInput) Normalize() SubmitInput {
	in.ShippingInfo = in.ShippingInfo.Normalize()
	in.PaymentMethod = strings.ToUpper(strings.TrimSpace(in.PaymentMethod))
	return in
}

// Validate checks every field and reports all problems at once.
func (in SubmitInput) Validate() error {
	fields := map[string]string{}

	if err := validate.Struct(in); err != nil {
		errs, ok := err.(validator.ValidationErrors)
		if !ok {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
		}
		for _, fe := range errs {
			if _, seen := fields[fe.Field()]; !seen {
				fields[fe.Field()] = fieldMessage(fe)
			}
		}
	}

	info := in.ShippingInfo
	if _, bad := fields["address"]; !bad && info.Address != "" {
		if info.Address == info.Ward || info.Address == info.District {
			fields["address"] = "Address must include the street and house number, not only the ward or district."
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return validationError(fields)
}

func validationError(fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	messages := make([]string, 0, len(names))
	for _, name := range names {
		messages = append(messages, fields[name])
	}
	return pkgerrors.New(pkgerrors.CodeValidation, strings.Join(messages, " ")).WithDetails(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "full_name":
		if fe.Tag() == "required" {
			return "Full name is required."
		}
		return "Full name must be at least 2 characters."
	case "phone_number":
		if fe.Tag() == "required" {
			return "Phone number is required."
		}
		return "Phone number must be a valid Vietnamese mobile number."
	case "address":
		if fe.Tag() == "required" {
			return "Address is required."
		}
		return "Address must be at least 5 characters."
	case "ward":
		return "Ward is required."
	case "district":
		return "District is required."
	case "province":
		return "Province is required."
	case "note":
		return fmt.Sprintf("Note must be at most %s characters.", fe.Param())
	case "payment_method":
		return fmt.Sprintf("Payment method must be %s or %s.", PaymentCOD, PaymentVNPay)
	}
	return fmt.Sprintf("%s is invalid.", fe.Field())
}
