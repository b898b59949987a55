// Package messaging builds the WhatsApp hand-off used by manual orders: a
// plain-text order summary and the wa.me deep link that carries it.
package messaging

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vasiliy-maslov/modest-storefront/internal/order"
)

var supported = []language.Tag{language.French, language.English, language.Arabic}

var matcher = language.NewMatcher(supported)

var translations = map[string]map[language.Tag]string{
	"New order %s":         {language.French: "Nouvelle commande %s", language.Arabic: "طلب جديد %s"},
	"Customer: %s":         {language.French: "Client : %s", language.Arabic: "العميل: %s"},
	"Email: %s":            {language.French: "E-mail : %s", language.Arabic: "البريد الإلكتروني: %s"},
	"Phone: %s":            {language.French: "Téléphone : %s", language.Arabic: "الهاتف: %s"},
	"Address: %s":          {language.French: "Adresse : %s", language.Arabic: "العنوان: %s"},
	"Items:":               {language.French: "Articles :", language.Arabic: "المنتجات:"},
	"Subtotal: %s":         {language.French: "Sous-total : %s", language.Arabic: "المجموع الفرعي: %s"},
	"Discount (%s): -%s":   {language.French: "Remise (%s) : -%s", language.Arabic: "الخصم (%s): -%s"},
	"Discount: -%s":        {language.French: "Remise : -%s", language.Arabic: "الخصم: -%s"},
	"Shipping: %s":         {language.French: "Livraison : %s", language.Arabic: "الشحن: %s"},
	"Total: %s":            {language.French: "Total : %s", language.Arabic: "الإجمالي: %s"},
	"Notes: %s":            {language.French: "Remarques : %s", language.Arabic: "ملاحظات: %s"},
	"Payment on delivery.": {language.French: "Paiement à la livraison.", language.Arabic: "الدفع عند الاستلام."},
}

func init() {
	for key, byLang := range translations {
		if err := message.SetString(language.English, key, key); err != nil {
			panic(err)
		}
		for tag, msg := range byLang {
			if err := message.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
}

func printerFor(lang string) *message.Printer {
	tag, _ := language.MatchStrings(matcher, lang)
	base, _ := tag.Base()
	for _, s := range supported {
		if b, _ := s.Base(); b == base {
			return message.NewPrinter(s)
		}
	}
	return message.NewPrinter(language.French)
}

// OrderMessage renders o as the text a customer sends to the shop. Line
// totals come from the order snapshots.
func OrderMessage(o *order.Order, lang string) string {
	p := printerFor(lang)
	var sb strings.Builder

	line := func(key message.Reference, args ...any) {
		sb.WriteString(p.Sprintf(key, args...))
		sb.WriteByte('\n')
	}

	line("New order %s", o.Reference)
	sb.WriteByte('\n')

	line("Items:")
	for _, it := range o.Items {
		variant := strings.Trim(it.Color+" / "+it.Size, " /")
		if variant != "" {
			sb.WriteString(p.Sprintf("- %d × %s (%s): %s", it.Quantity, it.ProductName, variant, amount(p, it.LineTotal)))
		} else {
			sb.WriteString(p.Sprintf("- %d × %s: %s", it.Quantity, it.ProductName, amount(p, it.LineTotal)))
		}
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	line("Subtotal: %s", amount(p, o.Subtotal))
	if o.DiscountAmount.IsPositive() {
		if o.PromotionCode != "" {
			line("Discount (%s): -%s", o.PromotionCode, amount(p, o.DiscountAmount))
		} else {
			line("Discount: -%s", amount(p, o.DiscountAmount))
		}
	}
	line("Shipping: %s", amount(p, o.ShippingCost))
	line("Total: %s", amount(p, o.Total))
	sb.WriteByte('\n')

	line("Customer: %s", o.Customer.Name)
	line("Email: %s", o.Customer.Email)
	if o.Customer.Phone != "" {
		line("Phone: %s", o.Customer.Phone)
	}
	line("Address: %s", formatAddress(o.ShippingAddress))
	if o.Notes != "" {
		line("Notes: %s", o.Notes)
	}
	sb.WriteByte('\n')
	sb.WriteString(p.Sprintf("Payment on delivery."))

	return sb.String()
}

// WhatsAppLink returns the wa.me URL that opens a chat with phone prefilled
// with text. Everything but digits is stripped from phone.
func WhatsAppLink(phone, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	return "https://wa.me/" + digits + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

// amount formats d to the cent from its exact decimal digits. Only the digit
// shapes and separators come from p.
func amount(p *message.Printer, d decimal.Decimal) string {
	whole, cents, _ := strings.Cut(d.Abs().StringFixed(2), ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return d.StringFixed(2) + " €"
	}

	var sb strings.Builder
	if d.Round(2).IsNegative() {
		sb.WriteByte('-')
	}
	sb.WriteString(p.Sprintf("%d", n))
	sb.WriteString(decimalSeparator(p))
	for _, c := range cents {
		sb.WriteString(p.Sprintf("%d", c-'0'))
	}
	sb.WriteString(" €")
	return sb.String()
}

func decimalSeparator(p *message.Printer) string {
	r := []rune(p.Sprintf("%.1f", 1.5))
	if len(r) < 3 {
		return "."
	}
	return string(r[1 : len(r)-1])
}

func formatAddress(a order.Address) string {
	parts := []string{a.Line1}
	if a.Line2 != "" {
		parts = append(parts, a.Line2)
	}
	parts = append(parts, strings.TrimSpace(a.PostalCode+" "+a.City), a.Country)
	return strings.Join(parts, ", ")
}
