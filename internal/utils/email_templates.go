package utils

import (
	"fmt"
	"html"
	"strings"

	"shopfront_back_end/internal/models"
)

// OrderPaidEmail renders the confirmation sent once Stripe reports the payment.
func OrderPaidEmail(order models.Order, customerName string) (subject, body string) {
	var rows strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&rows, `
			<tr>
				<td style="padding: 10px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%s</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%d</td>
				<td style="padding: 10px; border: 1px solid #ddd;">%.2f</td>
			</tr>`, html.EscapeString(item.Name), html.EscapeString(item.Size), item.Quantity, item.Price*float64(item.Quantity))
	}

	subject = "Your order " + order.ID + " is confirmed"
	body = fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Order confirmed</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Thank you for your order</h2>
		<p>Hi %s,</p>
		<p>We received your payment for order <strong>%s</strong>.</p>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Product</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Size</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Qty</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>%s
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Amount paid:</td>
					<td style="padding: 10px; font-weight: bold;">%.2f</td>
				</tr>
			</tfoot>
		</table>
	</div>
</body>
</html>`, html.EscapeString(customerName), html.EscapeString(order.ID), rows.String(), order.Amount)
	return subject, body
}

// OrderStatusEmail renders the notice sent when an admin moves an order forward.
func OrderStatusEmail(order models.Order, customerName string) (subject, body string) {
	subject = fmt.Sprintf("Order %s: %s", order.ID, order.Status)
	body = fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Order update</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Your order is on its way</h2>
		<p>Hi %s,</p>
		<p>Order <strong>%s</strong> is now <strong>%s</strong>.</p>
	</div>
</body>
</html>`, html.EscapeString(customerName), html.EscapeString(order.ID), html.EscapeString(string(order.Status)))
	return subject, body
}
