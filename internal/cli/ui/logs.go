package ui

import (
	"strconv"
	"strings"

	"github.com/ashureev/bot-console/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const cellWidth = 48

// RenderErrorTable renders error_log rows as a bordered table.
func RenderErrorTable(records []domain.ErrorLogRecord) string {
	if len(records) == 0 {
		return Styles.Muted.Render("No errors recorded")
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			strconv.FormatInt(rec.ID, 10),
			rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			clip(rec.UserQuery),
			clip(rec.ErrorMessage),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(Styles.Muted).
		Headers("ID", "CREATED (UTC)", "USER QUERY", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return Styles.Header
			case col == 3:
				return Styles.Error.Padding(0, 1)
			default:
				return lipgloss.NewStyle().Padding(0, 1)
			}
		})
	return t.Render()
}

// clip flattens s to a single line of at most cellWidth runes.
func clip(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= cellWidth {
		return s
	}
	return string(r[:cellWidth-1]) + "…"
}
