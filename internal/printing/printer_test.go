package printing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleReceipt() Receipt {
	return Receipt{
		InvoiceNo: "INV-20250601-0007",
		IssuedAt:  time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC),
		Lines: []ReceiptLine{
			{Name: "Ground Coffee 250g", Quantity: 2, UnitPrice: amount("7.50"), LineTotal: amount("15.00")},
		},
		Subtotal:      amount("15.00"),
		Discount:      amount("1.00"),
		Tax:           amount("1.50"),
		Total:         amount("15.50"),
		PaymentMethod: "CASH",
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	p := NewTextPrinter("Corner Shop", "USD")
	first, err := p.Render(context.Background(), sampleReceipt())
	require.NoError(t, err)
	second, err := p.Render(context.Background(), sampleReceipt())
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Contains(t, first, "Corner Shop")
	require.Contains(t, first, "INV-20250601-0007")
	require.Contains(t, first, "2025-06-01 14:30:00")
	require.Contains(t, first, "2 x 7.50")
	require.Contains(t, first, "Discount")
	require.Contains(t, first, "-1.00")
	require.Contains(t, first, "TOTAL USD")
	require.Contains(t, first, "15.50")
	require.Contains(t, first, "Paid by")
	require.NotContains(t, first, "CANCELLED")
}

func TestRenderLinesFitWidth(t *testing.T) {
	p := NewTextPrinter("Corner Shop", "USD")
	out, err := p.Render(context.Background(), sampleReceipt())
	require.NoError(t, err)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		require.LessOrEqual(t, len(line), receiptWidth, "line %q", line)
	}
}

func TestRenderCancelledBanner(t *testing.T) {
	p := NewTextPrinter("Corner Shop", "USD")
	r := sampleReceipt()
	r.Cancelled = true
	out, err := p.Render(context.Background(), r)
	require.NoError(t, err)
	require.Contains(t, out, "*** CANCELLED ***")
}

func TestRenderWeighedLine(t *testing.T) {
	p := NewTextPrinter("Corner Shop", "USD")
	weight := amount("0.480")
	r := sampleReceipt()
	r.Lines = []ReceiptLine{
		{Name: "Loose Beans", Quantity: 1, UnitPrice: amount("12.00"), LineTotal: amount("5.76"), MeasuredWeight: &weight},
	}
	out, err := p.Render(context.Background(), r)
	require.NoError(t, err)
	require.Contains(t, out, "0.48 kg x 12.00")
}

func TestRenderOverridesFromReceipt(t *testing.T) {
	p := NewTextPrinter("Corner Shop", "USD")
	r := sampleReceipt()
	r.StoreName = "Pop-up Stand"
	r.Currency = "EUR"
	out, err := p.Render(context.Background(), r)
	require.NoError(t, err)
	require.Contains(t, out, "Pop-up Stand")
	require.Contains(t, out, "TOTAL EUR")
	require.NotContains(t, out, "Corner Shop")
}

func TestRenderRequiresInvoice(t *testing.T) {
	p := NewTextPrinter("Corner Shop", "USD")
	_, err := p.Render(context.Background(), Receipt{})
	require.Error(t, err)
}
