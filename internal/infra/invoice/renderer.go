package invoice

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"fashionshop/internal/domain/model"
	"fashionshop/internal/notification"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// 請求書に載せる販売者情報
type Seller struct {
	CompanyName string
	TaxID       string
	TaxOffice   string
	Address     string
}

// Renderer はHTMLテンプレートからheadless ChromeでPDFを作る。
type Renderer struct {
	seller  Seller
	tmpl    *template.Template
	timeout time.Duration
}

func NewRenderer(seller Seller) *Renderer {
	return &Renderer{
		seller:  seller,
		tmpl:    template.Must(template.New("invoice").Funcs(funcs).Parse(invoiceHTML)),
		timeout: 30 * time.Second,
	}
}

type line struct {
	Name      string
	Variant   string
	Quantity  int64
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

type view struct {
	Seller         Seller
	Order          model.Order
	Lines          []line
	Address        model.Address
	InvoiceAddress model.Address
	QR             template.URL
	IssuedAt       string
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

// HTML は請求書のHTMLを返す（PDF化の前段）。
func (r *Renderer) HTML(data notification.InvoiceData) (string, error) {
	qr, err := orderQR(data.Order)
	if err != nil {
		return "", err
	}

	v := view{
		Seller:         r.seller,
		Order:          data.Order,
		Address:        data.Address,
		InvoiceAddress: data.InvoiceAddress,
		QR:             template.URL(qr),
		IssuedAt:       data.Order.CreatedAt.Format("2006-01-02"),
	}
	for _, it := range data.Items {
		v.Lines = append(v.Lines, line{
			Name:      it.ProductNameSnapshot,
			Variant:   it.Size + " / " + it.Color,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPriceSnapshot,
			Total:     it.LineTotal(),
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render invoice template: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) Render(ctx context.Context, data notification.InvoiceData) ([]byte, error) {
	html, err := r.HTML(data)
	if err != nil {
		return nil, err
	}

	cctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	cctx, cancel = context.WithTimeout(cctx, r.timeout)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(cctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print invoice pdf: %w", err)
	}
	return pdf, nil
}

// 注文番号と合計を載せたQR（data URI）
func orderQR(o model.Order) (string, error) {
	content := fmt.Sprintf("ORDER:%d;TOTAL:%s;DATE:%s", o.ID, o.Total.StringFixed(2), o.CreatedAt.Format("20060102"))
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode invoice qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

const invoiceHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Invoice #{{.Order.ID}}</title>
<style>
body { font-family: Arial, sans-serif; font-size: 12px; color: #222; margin: 32px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { border: 1px solid #ddd; padding: 6px; text-align: left; }
.right { text-align: right; }
.head { display: flex; justify-content: space-between; }
</style>
</head>
<body>
<div class="head">
  <div>
    <h2>{{.Seller.CompanyName}}</h2>
    <div>{{.Seller.Address}}</div>
    {{if .Seller.TaxID}}<div>Tax ID: {{.Seller.TaxID}} / {{.Seller.TaxOffice}}</div>{{end}}
  </div>
  <div>
    <img src="{{.QR}}" width="120" height="120">
    <div>Invoice #{{.Order.ID}}</div>
    <div>{{.IssuedAt}}</div>
  </div>
</div>

<h3>Bill to</h3>
{{if eq .Order.InvoiceType "CORPORATE"}}
<div>{{.Order.CompanyTitle}}</div>
<div>Tax ID: {{.Order.TaxID}} / {{.Order.TaxOffice}}</div>
{{else}}
<div>{{.InvoiceAddress.FirstName}} {{.InvoiceAddress.LastName}}</div>
{{end}}
<div>{{.InvoiceAddress.Line1}} {{.InvoiceAddress.Line2}}</div>
<div>{{.InvoiceAddress.PostalCode}} {{.InvoiceAddress.City}} {{.InvoiceAddress.Country}}</div>

<h3>Ship to</h3>
<div>{{.Address.FirstName}} {{.Address.LastName}} ({{.Address.Phone}})</div>
<div>{{.Address.Line1}} {{.Address.Line2}}</div>
<div>{{.Address.PostalCode}} {{.Address.City}} {{.Address.Country}}</div>

<table>
<thead><tr><th>Item</th><th>Variant</th><th class="right">Qty</th><th class="right">Unit</th><th class="right">Total</th></tr></thead>
<tbody>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Variant}}</td><td class="right">{{.Quantity}}</td><td class="right">{{money .UnitPrice}}</td><td class="right">{{money .Total}}</td></tr>
{{end}}
</tbody>
<tfoot>
<tr><td colspan="4" class="right">Subtotal</td><td class="right">{{money .Order.Subtotal}}</td></tr>
<tr><td colspan="4" class="right">Discount</td><td class="right">{{money .Order.Discount}}</td></tr>
<tr><td colspan="4" class="right">Shipping ({{.Order.ShippingMethod}})</td><td class="right">{{money .Order.ShippingCost}}</td></tr>
<tr><td colspan="4" class="right"><b>Total</b></td><td class="right"><b>{{money .Order.Total}}</b></td></tr>
</tfoot>
</table>
<p>Payment: {{.Order.PaymentMethod}}</p>
</body>
</html>`
