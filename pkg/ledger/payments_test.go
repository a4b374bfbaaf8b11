package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/storefront-service/models"
	"gitlab.connectwisedev.com/storefront-service/pkg/apperr"
)

func TestStatusForIsPendingOnlyForCash(t *testing.T) {
	for _, m := range models.PaymentMethods {
		got := StatusFor(m)
		if m == models.PaymentCash {
			assert.Equal(t, models.PaymentPending, got, m)
		} else {
			assert.Equal(t, models.PaymentCompleted, got, m)
		}
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)
	orderID, err := svc.CreateOrder(ctx, 7, decimal.NewFromInt(10))
	require.NoError(t, err)

	tests := []struct {
		name string
		p    models.Payment
		code apperr.Code
		msg  string
	}{
		{"missing order", models.Payment{Method: models.PaymentCash, Status: models.PaymentPending}, apperr.InvalidArgument, MsgPaymentFields},
		{"missing method", models.Payment{OrderID: orderID, Status: models.PaymentPending}, apperr.InvalidArgument, MsgPaymentFields},
		{"missing status", models.Payment{OrderID: orderID, Method: models.PaymentCash}, apperr.InvalidArgument, MsgPaymentFields},
		{"unknown method", models.Payment{OrderID: orderID, Method: "Barter", Status: models.PaymentPending}, apperr.InvalidArgument, MsgInvalidMethod},
		{"unknown status", models.Payment{OrderID: orderID, Method: models.PaymentCash, Status: "Paid"}, apperr.InvalidArgument, MsgInvalidPStatus},
		{"unknown order", models.Payment{OrderID: 999, Method: models.PaymentCash, Status: models.PaymentPending}, apperr.NotFound, MsgOrderNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordPayment(ctx, tt.p)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
			assert.Equal(t, tt.msg, apperr.Message(err))
		})
	}
}

func TestListPaymentsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)
	_, first := orderAndPayment(t, svc, models.PaymentCash)
	_, second := orderAndPayment(t, svc, models.PaymentBankTransfer)

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, second, payments[0].ID)
	assert.Equal(t, first, payments[1].ID)
	assert.Equal(t, models.PaymentCompleted, payments[0].Status)
	assert.Equal(t, models.PaymentPending, payments[1].Status)
}

func TestOrdersAndLines(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLedger(t)

	_, err := svc.CreateOrder(ctx, 0, decimal.NewFromInt(1))
	assert.True(t, apperr.IsInvalidArgument(err))

	orderID, err := svc.CreateOrder(ctx, 7, decimal.RequireFromString("10.005"))
	require.NoError(t, err)

	_, err = svc.AddOrderLine(ctx, models.OrderLine{OrderID: orderID, ProductID: 3, Quantity: 2, Price: decimal.RequireFromString("5.00")})
	require.NoError(t, err)

	_, err = svc.AddOrderLine(ctx, models.OrderLine{OrderID: orderID, ProductID: 3, Quantity: 0, Price: decimal.NewFromInt(1)})
	assert.True(t, apperr.IsInvalidArgument(err))

	_, err = svc.AddOrderLine(ctx, models.OrderLine{OrderID: 999, ProductID: 3, Quantity: 1, Price: decimal.NewFromInt(1)})
	assert.True(t, apperr.IsNotFound(err))

	orders, err := svc.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "10.01", orders[0].TotalAmount.StringFixed(2))

	lines, err := svc.OrderLines(ctx, orderID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}
