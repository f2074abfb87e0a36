package email

import (
	"fmt"
	"strings"

	"github.com/example/shop-fulfillment/internal/model"
)

// StatusSubject builds the subject line for a status change email.
func StatusSubject(orderNumber string, status model.OrderStatus) string {
	return fmt.Sprintf("Order %s update: %s", orderNumber, status.Label())
}

// statusLines maps a status to the sentence shown to the customer.
var statusLines = map[model.OrderStatus]string{
	model.StatusPlaced:       "We have received your order and it is being prepared.",
	model.StatusConsolidated: "Your order has been consolidated and is awaiting shipment.",
	model.StatusShipped:      "Your order has been shipped.",
	model.StatusDelivered:    "Your order has been delivered. Thank you for shopping with us!",
}

// BuildStatusChangeBody builds the HTML body for a status change email.
func BuildStatusChangeBody(order *model.Order, trackingNumber string) string {
	line, ok := statusLines[order.Status]
	if !ok {
		line = "Your order status has been updated."
	}

	tracking := ""
	if trackingNumber != "" {
		tracking = fmt.Sprintf(`
		<div style="background: #f8f9fa; padding: 15px; border-radius: 5px; margin: 20px 0;">
			<p style="margin: 0; font-size: 14px; color: #666;">Tracking number</p>
			<p style="margin: 5px 0 0 0; font-size: 18px; font-weight: bold; font-family: monospace;">%s</p>
		</div>`, trackingNumber)
	}

	var itemsHTML strings.Builder
	for _, item := range order.Items {
		itemsHTML.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 12px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 12px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			item.Name,
			item.Quantity,
			formatNumber(item.UnitPrice*item.Quantity),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #2c3e50; padding: 30px; border-radius: 10px 10px 0 0;">
		<h1 style="color: white; margin: 0; font-size: 24px;">Order %s</h1>
	</div>

	<div style="background: #fff; padding: 30px; border: 1px solid #eee; border-top: none; border-radius: 0 0 10px 10px;">
		<p style="margin-top: 0;">Hello %s,</p>
		<p>%s</p>
		%s

		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background: #f8f9fa;">
					<th style="padding: 12px; text-align: left; font-weight: 600;">Item</th>
					<th style="padding: 12px; text-align: center; font-weight: 600;">Qty</th>
					<th style="padding: 12px; text-align: right; font-weight: 600;">Subtotal</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
		</table>

		<div style="text-align: right; padding: 20px; background: #f8f9fa; border-radius: 5px;">
			<span style="font-size: 14px; color: #666;">Total</span>
			<span style="font-size: 24px; font-weight: bold; margin-left: 10px;">%s</span>
		</div>

		<p style="font-size: 12px; color: #999; margin-bottom: 0;">
			This is an automated message. If anything looks wrong, please contact support.
		</p>
	</div>
</body>
</html>`, order.OrderNumber, order.CustomerName, line, tracking, itemsHTML.String(), formatNumber(order.Total))
}

// StatusSMSText builds the short text-message version of a status change.
func StatusSMSText(order *model.Order, trackingNumber string) string {
	text := fmt.Sprintf("Order %s is now %s.", order.OrderNumber, order.Status.Label())
	if trackingNumber != "" {
		text += fmt.Sprintf(" Tracking: %s", trackingNumber)
	}
	return text
}

// formatNumber formats a number with comma separators
func formatNumber(n int) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var result strings.Builder
	remainder := len(str) % 3
	if remainder > 0 {
		result.WriteString(str[:remainder])
		if len(str) > remainder {
			result.WriteString(",")
		}
	}

	for i := remainder; i < len(str); i += 3 {
		result.WriteString(str[i : i+3])
		if i+3 < len(str) {
			result.WriteString(",")
		}
	}

	return result.String()
}
