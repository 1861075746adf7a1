package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jacokyle01/game-review/src/models"
)

var (
	labelStyles = map[models.Classification]lipgloss.Style{
		models.Book:       lipgloss.NewStyle().Foreground(lipgloss.Color("137")),
		models.Forced:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		models.Best:       lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		models.Excellent:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		models.Good:       lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		models.Inaccuracy: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		models.Mistake:    lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		models.Blunder:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
	dimStyle     = lipgloss.NewStyle().Faint(true)
	headingStyle = lipgloss.NewStyle().Bold(true)
)

func renderLabel(c models.Classification) string {
	style, ok := labelStyles[c]
	if !ok {
		return dimStyle.Render(c.String())
	}
	return style.Render(c.String())
}

func renderYesNo(ok bool) string {
	if ok {
		return labelStyles[models.Best].Render("yes")
	}
	return labelStyles[models.Blunder].Render("no")
}
