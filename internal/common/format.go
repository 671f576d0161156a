package common

import (
	"fmt"
	"strings"

	"deposit-reconciler-go/internal/models"
)

const (
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintHeader prints a title between two rules
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", width))
}

func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the box-drawing prefix for a list item
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// ShortId abbreviates ids and hashes for table output.
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

func OrNone(s *string) string {
	if s == nil || *s == "" {
		return "none"
	}
	return *s
}

// FormatDeposit renders one deposit row for the operator tools.
func FormatDeposit(d models.Deposit) string {
	amount := d.ClaimedAmount.String()
	if d.CreditedAmount.Valid {
		amount = d.CreditedAmount.Decimal.String()
	}
	return fmt.Sprintf("%-38s %-5s %18s %-10s user=%-12s tx=%-15s %s",
		d.Id, d.Asset, amount, d.Status, OrNone(d.UserId), ShortId(OrNone(d.TxHash)),
		d.CreatedAt.Format("2006-01-02 15:04:05"))
}
