package view

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/pharmacy/internal/catalog"
	"github.com/MrJamesThe3rd/pharmacy/internal/report"
)

var reportKinds = []report.Kind{report.KindNearExpiry, report.KindExpired, report.KindOutOfStock}

// ReportsModel shows the inventory reports as a table.
type ReportsModel struct {
	CommonModel
	reports *report.Service

	table   table.Model
	kindIdx int
	months  int

	result  *report.Result
	loading bool
	err     error
	status  string
}

func NewReportsModel(svc *report.Service, months int) ReportsModel {
	columns := []table.Column{
		{Title: "Medicine", Width: 30},
		{Title: "Batch", Width: 18},
		{Title: "Expiry", Width: 8},
		{Title: "Stock", Width: 10},
		{Title: "Units", Width: 8},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return ReportsModel{
		reports: svc,
		table:   t,
		months:  months,
		loading: true,
	}
}

func (m ReportsModel) Title() string { return "Inventory Reports" }
func (m ReportsModel) ShortHelp() string {
	return "Esc: back | k: report | +/-: months | r: refresh | x: export xlsx"
}

func (m ReportsModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m ReportsModel) kind() report.Kind {
	return reportKinds[m.kindIdx]
}

func (m ReportsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reportLoadedMsg:
		m.loading = false
		m.err = msg.err

		if msg.err == nil {
			m.result = msg.result
			m.refreshTable()
		}

		return m, nil

	case reportExportedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Export failed: %v", msg.err)
		} else {
			m.status = "Saved " + msg.path
		}

		return m, nil

	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.table.SetHeight(max(msg.Height-10, 3))

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return m, Back
		case "r":
			return m.reload()
		case "k":
			m.kindIdx = (m.kindIdx + 1) % len(reportKinds)
			return m.reload()
		case "+", "=":
			if m.kind() != report.KindNearExpiry {
				return m, nil
			}

			m.months++

			return m.reload()
		case "-":
			if m.kind() != report.KindNearExpiry || m.months == 0 {
				return m, nil
			}

			m.months--

			return m.reload()
		case "x":
			if m.result == nil {
				return m, nil
			}

			return m, exportCmd(m.result)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m ReportsModel) reload() (tea.Model, tea.Cmd) {
	m.loading = true
	m.status = ""

	return m, m.loadCmd()
}

func (m ReportsModel) View() string {
	if m.loading {
		return panel("Loading report...")
	}

	if m.err != nil {
		return panel(fmt.Sprintf("Error: %v\n\n(r to retry, Esc to back)", m.err))
	}

	header := "Report: [k] " + activeStyle(m.kind().Title())
	if m.kind() == report.KindNearExpiry {
		header += fmt.Sprintf(" | [+/-] Window: %s", activeStyle(strconv.Itoa(m.months)+" month(s)"))
	}

	count := 0
	if m.result != nil {
		count = len(m.result.Batches)
	}

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
		fmt.Sprintf("%d batch(es)", count),
	)

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m *ReportsModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.result.Batches))

	for _, b := range m.result.Batches {
		name := ""
		if b.Medicine != nil {
			name = b.Medicine.Name
		}

		rows = append(rows, table.Row{
			name,
			b.Barcode,
			catalog.FormatExpiryMonth(b.ExpiryDate),
			b.StockPackets(),
			strconv.FormatInt(b.StockUnits, 10),
		})
	}

	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Messages

type reportLoadedMsg struct {
	result *report.Result
	err    error
}

func (m ReportsModel) loadCmd() tea.Cmd {
	svc := m.reports
	q := report.Query{Kind: m.kind()}

	if q.Kind == report.KindNearExpiry {
		months := m.months
		q.Months = &months
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		res, err := svc.Run(ctx, q)

		return reportLoadedMsg{result: res, err: err}
	}
}

type reportExportedMsg struct {
	path string
	err  error
}

func exportCmd(res *report.Result) tea.Cmd {
	return func() tea.Msg {
		path := res.Filename()

		f, err := os.Create(path)
		if err != nil {
			return reportExportedMsg{err: err}
		}

		if err := report.WriteXLSX(f, res); err != nil {
			_ = f.Close()
			return reportExportedMsg{err: err}
		}

		return reportExportedMsg{path: path, err: f.Close()}
	}
}
