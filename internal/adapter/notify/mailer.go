package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/nursace/storefront/internal/config"
	"github.com/nursace/storefront/internal/core/domain"
)

// SMTPMailer sends the HTML receipt email. net/smtp is enough here; the
// message is a single-part HTML body with no attachments.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendReceipt(ctx context.Context, receipt domain.Receipt) error {
	if receipt.Email == "" {
		return fmt.Errorf("order %d: no customer email", receipt.OrderID)
	}

	subject := fmt.Sprintf("Receipt for order #%d", receipt.OrderID)
	body := receiptHTML(receipt)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", receipt.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, m.cfg.From, []string{receipt.Email}, []byte(msg.String()))
	}()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send receipt for order %d: %w", receipt.OrderID, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send receipt for order %d: %w", receipt.OrderID, ctx.Err())
	}
}

func receiptHTML(r domain.Receipt) string {
	var rows strings.Builder
	for _, it := range r.Items {
		fmt.Fprintf(&rows, `
			<tr>
				<td>%s</td>
				<td align="center">%d</td>
				<td align="right">%s</td>
			</tr>`, it.ProductName, it.Quantity, it.Price)
	}

	address := fmt.Sprintf("%s, %s, %s, %s", r.Address.Region, r.Address.City, r.Address.Line1, r.Address.PostalCode)
	return fmt.Sprintf(`
<html>
<body>
	<h2>Order #%d</h2>
	<p><strong>Name:</strong> %s</p>
	<p><strong>Delivery address:</strong> %s</p>
	<p><strong>Phone:</strong> %s</p>

	<h3>Items:</h3>
	<table border="1" cellpadding="6" cellspacing="0" style="border-collapse: collapse;">
		<thead>
			<tr><th>Product</th><th>Qty</th><th>Price</th></tr>
		</thead>
		<tbody>
			%s
			<tr>
				<td colspan="2" align="right"><strong>Total:</strong></td>
				<td align="right"><strong>%s</strong></td>
			</tr>
		</tbody>
	</table>

	<p>Thank you for your purchase!</p>
</body>
</html>`, r.OrderID, r.FullName, address, r.Phone, rows.String(), r.Total)
}
