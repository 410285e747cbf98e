package mail

import (
	"fmt"
	"html"
	"strings"

	"digi-merch/internal/model"
)

// OrderReceivedSubject is the buyer notification subject line.
func OrderReceivedSubject(serialNo string) string {
	return fmt.Sprintf("Order %s received", serialNo)
}

// OrderReceivedHTML builds the buyer notification sent right after a
// submission, before review.
func OrderReceivedHTML(order *model.Order) string {
	var b strings.Builder
	b.WriteString("<h2>Thanks for your order!</h2>")
	fmt.Fprintf(&b, "<p>Hi %s, we received your order <strong>%s</strong> and it is now pending review.</p>",
		html.EscapeString(order.BuyerUsername), html.EscapeString(order.SerialNo))
	b.WriteString(itemTable(order.Products))
	fmt.Fprintf(&b, "<p>Total: %.2f &middot; Payment reference: %s</p>",
		order.TotalAmount, html.EscapeString(order.ReferenceNo))
	b.WriteString("<p>You will receive your download access link once payment is verified.</p>")
	return b.String()
}

// AdminAlertSubject is the admin inbox subject line for a new claim.
func AdminAlertSubject(serialNo string) string {
	return fmt.Sprintf("New order %s awaiting review", serialNo)
}

// AdminAlertHTML builds the admin notification for a new purchase claim.
func AdminAlertHTML(order *model.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Order %s</h2>", html.EscapeString(order.SerialNo))
	fmt.Fprintf(&b, "<p>%s &lt;%s&gt; via %s</p>",
		html.EscapeString(order.BuyerUsername),
		html.EscapeString(order.BuyerEmail),
		html.EscapeString(order.PaymentPortalUsed))
	b.WriteString(itemTable(order.Products))
	fmt.Fprintf(&b, "<p>Total: %.2f &middot; Reference: %s</p>",
		order.TotalAmount, html.EscapeString(order.ReferenceNo))
	return b.String()
}

// AccessLinkSubject is the approval email subject line.
func AccessLinkSubject(serialNo string) string {
	return fmt.Sprintf("Your downloads for order %s are ready", serialNo)
}

// AccessLinkHTML builds the approval email carrying the signed access
// link. deliveryURL already embeds the token.
func AccessLinkHTML(order *model.Order, deliveryURL string) string {
	var b strings.Builder
	b.WriteString("<h2>Your order is approved</h2>")
	fmt.Fprintf(&b, "<p>Hi %s, payment for order <strong>%s</strong> has been verified.</p>",
		html.EscapeString(order.BuyerUsername), html.EscapeString(order.SerialNo))
	b.WriteString(itemTable(order.Products))
	fmt.Fprintf(&b, `<p><a href="%s">Open your download page</a></p>`, deliveryURL)
	b.WriteString("<p>Keep this link private. It stays valid while your order remains approved.</p>")
	return b.String()
}

func itemTable(products []model.OrderProduct) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, p := range products {
		fmt.Fprintf(&b, "<li>%s &mdash; %.2f</li>", html.EscapeString(p.Name), p.Amount)
	}
	b.WriteString("</ul>")
	return b.String()
}
