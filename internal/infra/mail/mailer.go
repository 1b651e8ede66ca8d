package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"fashionshop/internal/config"
	"fashionshop/internal/domain/model"
	"fashionshop/internal/logger"
	"fashionshop/internal/notification"

	"github.com/shopspring/decimal"
	gomail "github.com/wneessen/go-mail"
)

// Mailer はSMTPで注文系のメールを送る。
type Mailer struct {
	from   string
	client *gomail.Client
	tmpl   *template.Template
}

// NewMailer はSMTP_HOSTが空ならnilを返す。
func NewMailer(cfg config.Config) (*Mailer, error) {
	if cfg.SMTPHost == "" {
		return nil, nil
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthLogin),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &Mailer{
		from:   cfg.MailFrom,
		client: client,
		tmpl:   template.Must(template.New("mail").Funcs(funcs).Parse(templates)),
	}, nil
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, om notification.OrderMail) error {
	msg, err := m.message(om.To, fmt.Sprintf("Order #%d confirmed", om.Order.ID), "order_confirmation", om)
	if err != nil {
		return err
	}
	if len(om.Invoice) > 0 {
		if err := msg.AttachReader(fmt.Sprintf("invoice-%d.pdf", om.Order.ID), bytes.NewReader(om.Invoice)); err != nil {
			return fmt.Errorf("attach invoice: %w", err)
		}
	}
	return m.send(ctx, msg)
}

func (m *Mailer) SendStatusChanged(ctx context.Context, sm notification.StatusMail) error {
	msg, err := m.message(sm.To, fmt.Sprintf("Order #%d is now %s", sm.Order.ID, sm.Order.Status), "status_changed", sm)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

// SendBackInStock は再入荷のお知らせ
func (m *Mailer) SendBackInStock(ctx context.Context, to string, p model.Product) error {
	msg, err := m.message(to, p.Name+" is back in stock", "back_in_stock", p)
	if err != nil {
		return err
	}
	return m.send(ctx, msg)
}

func (m *Mailer) message(to, subject, tmpl string, data any) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	if err := msg.SetBodyHTMLTemplate(m.tmpl.Lookup(tmpl), data); err != nil {
		return nil, fmt.Errorf("mail body %s: %w", tmpl, err)
	}
	return msg, nil
}

func (m *Mailer) send(ctx context.Context, msg *gomail.Msg) error {
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	logger.Debug(ctx).Strs("to", msg.GetToString()).Msg("mail sent")
	return nil
}

const templates = `
{{define "order_confirmation"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
<h2>Thank you for your order{{if .Name}}, {{.Name}}{{end}}</h2>
<p>Order #{{.Order.ID}} has been received.</p>
<table style="border-collapse: collapse;">
{{range .Items}}<tr><td>{{.ProductNameSnapshot}} ({{.Size}} / {{.Color}})</td><td>x{{.Quantity}}</td><td>{{money .UnitPriceSnapshot}}</td></tr>
{{end}}</table>
<p>Shipping: {{money .Order.ShippingCost}}<br><b>Total: {{money .Order.Total}}</b></p>
{{if .InvoiceAt}}<p><a href="{{.InvoiceAt}}">Download invoice</a></p>{{end}}
</body></html>{{end}}

{{define "status_changed"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
<p>Hello{{if .Name}} {{.Name}}{{end}},</p>
<p>The status of order #{{.Order.ID}} changed from {{.From}} to <b>{{.Order.Status}}</b>.</p>
{{if .Order.TrackingNumber}}<p>Tracking number: {{.Order.TrackingNumber}}</p>{{end}}
</body></html>{{end}}

{{define "back_in_stock"}}<!DOCTYPE html>
<html><body style="font-family: Arial, sans-serif;">
<p><b>{{.Name}}</b> is available again at {{money .Price}}.</p>
</body></html>{{end}}
`
