package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"

	"github.com/steveyegge/taskdb/internal/task"
)

var (
	headerRowStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle      = lipgloss.NewStyle()
	passStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	overdueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	doneStyle      = lipgloss.NewStyle().Faint(true)
)

func renderPass(s string) string { return passStyle.Render(s) }
func renderWarn(s string) string { return warnStyle.Render(s) }

// shortID is the first UUID group, enough to address tasks on the
// command line.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func renderTaskTable(tasks []*task.Task) string {
	if len(tasks) == 0 {
		return "No tasks found."
	}
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		due := ""
		if t.Due != nil {
			due = t.Due.Format("2006-01-02")
		}
		rows[i] = []string{
			shortID(t.ID),
			t.Description,
			t.Project,
			string(t.Priority),
			renderStatus(t),
			strings.Join(t.Tags, " "),
			due,
		}
	}
	tbl := table.New().
		Headers("ID", "Description", "Project", "Pri", "Status", "Tags", "Due").
		Rows(rows...).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerRowStyle
			}
			return cellStyle
		})
	return tbl.Render()
}

func renderStatus(t *task.Task) string {
	switch {
	case t.Status == task.StatusCompleted:
		return doneStyle.Render("done")
	case t.Status == task.StatusDeleted:
		return doneStyle.Render("deleted")
	case t.IsOverdue():
		return overdueStyle.Render("overdue")
	case t.Active:
		return passStyle.Render("active")
	default:
		return string(t.Status)
	}
}

func renderTaskDetail(t *task.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "UUID:        %s\n", t.ID)
	fmt.Fprintf(&b, "Description: %s\n", t.Description)
	fmt.Fprintf(&b, "Status:      %s\n", t.Status)
	if t.Project != "" {
		fmt.Fprintf(&b, "Project:     %s\n", t.Project)
	}
	if t.Priority != task.PriorityNone {
		fmt.Fprintf(&b, "Priority:    %s\n", t.Priority)
	}
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "Tags:        %s\n", strings.Join(t.Tags, " "))
	}
	if t.Due != nil {
		fmt.Fprintf(&b, "Due:         %s\n", t.Due.Format("2006-01-02 15:04"))
	}
	for _, a := range t.Annotations {
		fmt.Fprintf(&b, "  %s  %s\n", a.Entry.Format("2006-01-02 15:04"), a.Description)
	}
	for _, dep := range t.Depends {
		fmt.Fprintf(&b, "Depends:     %s\n", shortID(dep))
	}
	return b.String()
}
