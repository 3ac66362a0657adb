package checkout

import (
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to State
		legal    bool
	}{
		{StateIdle, StateValidating, true},
		{StateValidating, StateSubmittingOrder, true},
		{StateValidating, StateError, true},
		{StateSubmittingOrder, StateConfirmed, true},
		{StateSubmittingOrder, StateAwaitingExternalPayment, true},
		{StateAwaitingExternalPayment, StateConfirmed, true},
		{StateAwaitingExternalPayment, StateError, true},
		{StateConfirmed, StateIdle, true},
		{StateError, StateIdle, true},
		{StateIdle, StateConfirmed, false},
		{StateIdle, StateSubmittingOrder, false},
		{StateConfirmed, StateError, false},
		{StateValidating, StateConfirmed, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.legal, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestMachineRejectsIllegalStep(t *testing.T) {
	m := newMachine(StateIdle)
	err := m.advance(StateConfirmed)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, StateIdle, m.current())

	require.NoError(t, m.advance(StateValidating))
	m.fail()
	assert.Equal(t, StateError, m.current())
}

func TestShippingAddressMustNotRepeatWard(t *testing.T) {
	input := validInput(PaymentCOD)
	input.ShippingInfo.Address = "Hang Bai"

	err := input.Normalize().Validate()
	require.Error(t, err)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Contains(t, details["address"], "street")
}

func TestShippingAddressComparesVerbatim(t *testing.T) {
	input := validInput(PaymentCOD)
	input.ShippingInfo.Address = "hang bai"
	assert.NoError(t, input.Normalize().Validate())

	input.ShippingInfo.Address = "Hoan Kiem"
	assert.Error(t, input.Normalize().Validate())
}

func TestShippingAcceptsInternationalPrefix(t *testing.T) {
	input := validInput(PaymentVNPay)
	input.ShippingInfo.PhoneNumber = "+84 912 345 678"
	assert.NoError(t, input.Normalize().Validate())

	input.ShippingInfo.PhoneNumber = "0212345678"
	assert.Error(t, input.Normalize().Validate())
}
