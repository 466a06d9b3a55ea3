package main

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/MrJamesThe3rd/pharmacy/cmd/tui/internal/view"
	catalogStore "github.com/MrJamesThe3rd/pharmacy/internal/catalog/store"
	"github.com/MrJamesThe3rd/pharmacy/internal/config"
	"github.com/MrJamesThe3rd/pharmacy/internal/database"
	"github.com/MrJamesThe3rd/pharmacy/internal/logging"
	"github.com/MrJamesThe3rd/pharmacy/internal/report"
	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
	saleStore "github.com/MrJamesThe3rd/pharmacy/internal/sale/store"
)

const logFile = "pharmacy-tui.log"

type model struct {
	reportService *report.Service
	saleService   *sale.Service
	nearExpiry    int
	appName       string

	currentView View

	reportsView view.ReportsModel
	refundView  view.RefundModel
}

type View int

const (
	ViewMenu    View = 0
	ViewReports View = 1
	ViewRefund  View = 2
)

func initialModel(cfg *config.Config, log *logrus.Logger) model {
	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	reportSvc := report.NewService(catalogStore.New(db), time.Now, cfg.Reports.NearExpiryMonths)
	saleSvc := sale.NewService(saleStore.New(db), log, time.Now)

	return model{
		reportService: reportSvc,
		saleService:   saleSvc,
		nearExpiry:    cfg.Reports.NearExpiryMonths,
		appName:       cfg.App.Name,
		currentView:   ViewMenu,
		reportsView:   view.NewReportsModel(reportSvc, cfg.Reports.NearExpiryMonths),
		refundView:    view.NewRefundModel(saleSvc),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewReports
				m.reportsView = view.NewReportsModel(m.reportService, m.nearExpiry)

				return m, m.reportsView.Init()
			case "2":
				m.currentView = ViewRefund
				m.refundView = view.NewRefundModel(m.saleService)

				return m, m.refundView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewReports:
		var newModel tea.Model
		newModel, cmd = m.reportsView.Update(msg)
		m.reportsView = newModel.(view.ReportsModel)
	case ViewRefund:
		var newModel tea.Model
		newModel, cmd = m.refundView.Update(msg)
		m.refundView = newModel.(view.RefundModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.appName + "\n\n" +
				"1. " + m.reportsView.Title() + "\n" +
				"2. " + m.refundView.Title() + "\n\n" +
				"q. Quit",
		)
	case ViewReports:
		return m.reportsView.View() + "\n" + m.reportsView.ShortHelp()
	case ViewRefund:
		return m.refundView.View()
	}

	return "Unknown View"
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}

	// The terminal belongs to the program, so logs go to a file.
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Fatal("failed to open log file")
	}
	defer f.Close()

	log.SetOutput(f)

	p := tea.NewProgram(initialModel(cfg, log), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.WithError(err).Error("failed to run TUI")
		os.Exit(1)
	}
}
