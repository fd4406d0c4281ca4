package notifications

import (
	"fmt"
	"time"
)

// Formatter renders the booking notification text for a given requester
// name and slot time. The locale decides wording and date layout.
type Formatter func(requesterName string, date time.Time) string

// NewFormatter returns the formatter for a locale tag. Unknown locales
// fall back to English.
func NewFormatter(locale string) Formatter {
	switch locale {
	case "pt-BR", "pt":
		return formatPortuguese
	default:
		return formatEnglish
	}
}

func formatEnglish(requesterName string, date time.Time) string {
	return fmt.Sprintf("New appointment from %s on %s",
		requesterName, date.Format("Monday, January 2 at 3:04 PM"))
}

var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func formatPortuguese(requesterName string, date time.Time) string {
	return fmt.Sprintf("Novo agendamento de %s para dia %d de %s, às %dh",
		requesterName, date.Day(), ptMonths[date.Month()-1], date.Hour())
}
