package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/netbill/backend/internal/domain/rating"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
)

var (
	accent  = lipgloss.Color("#2563EB")
	dim     = lipgloss.Color("#6B7280")
	success = lipgloss.Color("#16A34A")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)
	okStyle    = lipgloss.NewStyle().Foreground(success).Bold(true)
	kindStyle  = lipgloss.NewStyle().Width(12)
	qtyStyle   = lipgloss.NewStyle().Width(20).Align(lipgloss.Right)
	amtStyle   = lipgloss.NewStyle().Width(16).Align(lipgloss.Right)
	totalStyle = lipgloss.NewStyle().Bold(true).Width(48).Align(lipgloss.Right)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)

	printer = message.NewPrinter(language.English)
)

// formatMoney groups thousands: 12345.6 CNY renders as "12,345.60 CNY".
func formatMoney(m valueobject.Money) string {
	scale := int(m.Currency().Scale())
	return printer.Sprintf("%v", number.Decimal(m.Decimal().InexactFloat64(),
		number.MinFractionDigits(scale), number.MaxFractionDigits(scale))) + " " + m.Currency().String()
}

func formatQuantity(kind rating.RateKind, qty int64) string {
	switch kind {
	case rating.RateKindTiered, rating.RateKindVolume:
		return printer.Sprintf("%.3f GiB", float64(qty)/float64(rating.BytesPerGiB))
	case rating.RateKindBandwidth:
		return printer.Sprintf("%d band(s)", qty)
	case rating.RateKindTimeBased:
		return printer.Sprintf("%.2f h", float64(qty)/float64(rating.SecondsPerHour))
	default:
		return "1"
	}
}

func renderQuote(plan *rating.RatePlan, usage rating.UsageSample, q rating.Quote) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(plan.Name))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s at %s", usage, q.At.Format("2006-01-02 15:04 MST"))))
	b.WriteString("\n\n")
	for _, l := range q.Lines {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			kindStyle.Render(string(l.Kind)),
			qtyStyle.Render(formatQuantity(l.Kind, l.Quantity)),
			amtStyle.Render(formatMoney(l.Amount)),
		))
		b.WriteString("\n")
	}
	if len(q.Lines) == 0 {
		b.WriteString(dimStyle.Render("no rate applies at this time"))
		b.WriteString("\n")
	}
	b.WriteString(totalStyle.Render("Total " + formatMoney(q.Total)))
	return boxStyle.Render(b.String())
}

func renderPlanSummary(plan *rating.RatePlan) string {
	var b strings.Builder
	b.WriteString(okStyle.Render("✓ valid"))
	b.WriteString(" ")
	b.WriteString(titleStyle.Render(plan.Name))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" (%s, %d rate(s), from %s)",
		plan.Currency, len(plan.Rates), plan.ValidFrom.Format("2006-01-02"))))
	for _, r := range plan.Rates {
		b.WriteString("\n  ")
		b.WriteString(kindStyle.Render(string(r.Kind)))
		if r.Kind == rating.RateKindTiered {
			b.WriteString(dimStyle.Render(fmt.Sprintf("%d tier(s)", len(r.Tiers))))
			continue
		}
		b.WriteString(formatMoney(r.UnitPrice))
	}
	return b.String()
}
