// Package printing renders committed sales as plain-text till receipts.
package printing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Receipt is the printable view of a sale. It is built from persisted data
// only, so rendering the same sale twice yields the same receipt.
type Receipt struct {
	StoreName     string
	Currency      string
	InvoiceNo     string
	IssuedAt      time.Time
	Lines         []ReceiptLine
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod string
	Cancelled     bool
}

// ReceiptLine is one printed line item.
type ReceiptLine struct {
	Name           string
	Quantity       int64
	UnitPrice      decimal.Decimal
	LineTotal      decimal.Decimal
	MeasuredWeight *decimal.Decimal
}

// ReceiptPrinter renders a receipt to its final output form.
type ReceiptPrinter interface {
	Render(ctx context.Context, receipt Receipt) (string, error)
}

const receiptWidth = 42

// TextPrinter renders fixed-width plain-text receipts for thermal printers.
type TextPrinter struct {
	storeName string
	currency  string
	printer   *message.Printer
}

// NewTextPrinter constructs TextPrinter. storeName and currency are the
// defaults used when the receipt itself carries none.
func NewTextPrinter(storeName, currency string) *TextPrinter {
	return &TextPrinter{
		storeName: storeName,
		currency:  currency,
		printer:   message.NewPrinter(language.English),
	}
}

// Render produces the receipt text. The layout is deterministic for a given
// receipt.
func (p *TextPrinter) Render(_ context.Context, receipt Receipt) (string, error) {
	if receipt.InvoiceNo == "" {
		return "", fmt.Errorf("receipt missing invoice number")
	}
	store := receipt.StoreName
	if store == "" {
		store = p.storeName
	}
	currency := receipt.Currency
	if currency == "" {
		currency = p.currency
	}

	var b strings.Builder
	center(&b, store)
	center(&b, receipt.InvoiceNo)
	center(&b, receipt.IssuedAt.Format("2006-01-02 15:04:05"))
	if receipt.Cancelled {
		center(&b, "*** CANCELLED ***")
	}
	rule(&b)

	for _, line := range receipt.Lines {
		b.WriteString(line.Name)
		b.WriteByte('\n')
		qty := p.printer.Sprintf("%d x %s", line.Quantity, line.UnitPrice.StringFixed(2))
		if line.MeasuredWeight != nil {
			qty = p.printer.Sprintf("%s kg x %s", line.MeasuredWeight.String(), line.UnitPrice.StringFixed(2))
		}
		row(&b, "  "+qty, line.LineTotal.StringFixed(2))
	}
	rule(&b)

	row(&b, "Subtotal", receipt.Subtotal.StringFixed(2))
	if receipt.Discount.IsPositive() {
		row(&b, "Discount", "-"+receipt.Discount.StringFixed(2))
	}
	if receipt.Tax.IsPositive() {
		row(&b, "Tax", receipt.Tax.StringFixed(2))
	}
	row(&b, "TOTAL "+currency, receipt.Total.StringFixed(2))
	row(&b, "Paid by", receipt.PaymentMethod)
	rule(&b)
	center(&b, "Thank you")
	return b.String(), nil
}

func center(b *strings.Builder, s string) {
	if pad := (receiptWidth - len(s)) / 2; pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	b.WriteString(s)
	b.WriteByte('\n')
}

func row(b *strings.Builder, left, right string) {
	gap := receiptWidth - len(left) - len(right)
	if gap < 1 {
		gap = 1
	}
	b.WriteString(left)
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(right)
	b.WriteByte('\n')
}

func rule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", receiptWidth))
	b.WriteByte('\n')
}
