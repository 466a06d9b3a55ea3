package view

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/pharmacy/internal/sale"
)

type refundFields struct {
	invoiceID string
	confirm   bool
}

// RefundModel refunds a paid invoice after confirmation.
type RefundModel struct {
	CommonModel
	sales *sale.Service

	form   *huh.Form
	fields *refundFields

	refunded *sale.Invoice
	status   string
}

func NewRefundModel(svc *sale.Service) RefundModel {
	m := RefundModel{sales: svc, fields: &refundFields{}}
	m.form = m.newForm()

	return m
}

func (m RefundModel) Title() string     { return "Refund Invoice" }
func (m RefundModel) ShortHelp() string { return "Enter: next | Esc: back" }

func (m RefundModel) newForm() *huh.Form {
	*m.fields = refundFields{}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("invoice").
				Title("Invoice ID").
				Placeholder("00000000-0000-0000-0000-000000000000").
				Value(&m.fields.invoiceID).
				Validate(validateInvoiceID),

			huh.NewConfirm().
				Key("confirm").
				Title("Refund this invoice and return its items to stock?").
				Affirmative("Refund").
				Negative("Cancel").
				Value(&m.fields.confirm),
		),
	).WithWidth(60).WithShowHelp(false)
}

func validateInvoiceID(s string) error {
	if _, err := uuid.Parse(strings.TrimSpace(s)); err != nil {
		return errors.New("not a valid invoice id")
	}

	return nil
}

func (m RefundModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m RefundModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

	case refundResultMsg:
		m.refunded = msg.invoice
		if msg.err != nil {
			m.status = fmt.Sprintf("Refund failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Invoice %s refunded (%s)", msg.invoice.ID, FormatMoney(msg.invoice.TotalAfterDiscount()))
		}

		m.form = m.newForm()

		return m, m.form.Init()
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !m.fields.confirm {
		m.status = "Refund cancelled"
		m.form = m.newForm()

		return m, m.form.Init()
	}

	id, err := uuid.Parse(strings.TrimSpace(m.fields.invoiceID))
	if err != nil {
		m.status = err.Error()
		m.form = m.newForm()

		return m, m.form.Init()
	}

	return m, m.refundCmd(id)
}

func (m RefundModel) View() string {
	var b strings.Builder

	b.WriteString("Refund Invoice\n\n")

	if m.status != "" {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(m.status))
		b.WriteString("\n\n")
	}

	if inv := m.refunded; inv != nil {
		fmt.Fprintf(&b, "Created: %s | Items: %d | Status: %s\n\n", FormatDate(inv.CreatedAt), len(inv.Items), activeStyle(string(inv.PaymentStatus)))
	}

	b.WriteString(m.form.View())
	b.WriteString("\n\n(Esc to back)")

	return panel(b.String())
}

type refundResultMsg struct {
	invoice *sale.Invoice
	err     error
}

func (m RefundModel) refundCmd(id uuid.UUID) tea.Cmd {
	svc := m.sales

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		inv, err := svc.Refund(ctx, id)

		return refundResultMsg{invoice: inv, err: err}
	}
}
