package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPaymentItemsSum(t *testing.T) {
	items := PaymentItems{
		{FeeID: "f1", Amount: dec("400")},
		{FeeID: "f2", Amount: dec("100.50")},
	}
	assert.True(t, items.Sum().Equal(dec("500.50")))
	assert.True(t, PaymentItems(nil).Sum().IsZero())
}

func TestPaymentItemsSumCancelsReversal(t *testing.T) {
	items := PaymentItems{
		{FeeID: "f1", Amount: dec("400")},
		{FeeID: "f1", Amount: dec("-400")},
	}
	assert.True(t, items.Sum().IsZero())
}

func TestPaymentMethodValid(t *testing.T) {
	assert.True(t, PaymentMethodCash.Valid())
	assert.True(t, PaymentMethodUPI.Valid())
	assert.False(t, PaymentMethod("BARTER").Valid())
}

func TestCollectionGroupByValid(t *testing.T) {
	assert.True(t, GroupByMethod.Valid())
	assert.True(t, GroupByDay.Valid())
	assert.False(t, CollectionGroupBy("week").Valid())
}

func TestPaymentItemsScanRoundTrip(t *testing.T) {
	items := PaymentItems{{FeeID: "f1", FeeTemplateName: "Tuition", Amount: dec("250"), FeeBalance: decimal.Zero}}
	raw, err := items.Value()
	assert.NoError(t, err)
	var decoded PaymentItems
	assert.NoError(t, decoded.Scan(raw))
	assert.Len(t, decoded, 1)
	assert.True(t, decoded[0].Amount.Equal(dec("250")))
}
