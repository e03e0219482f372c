package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rashody/internal/core"
	applog "rashody/internal/log"
	"rashody/internal/storage"
)

// ReportService builds monthly per-category summaries.
type ReportService struct {
	expenses storage.ExpenseStore
	loc      *time.Location
	now      func() time.Time
	logger   *applog.Logger
}

// NewReportService uses loc to decide where months begin. A nil loc means time.Local.
func NewReportService(expenses storage.ExpenseStore, loc *time.Location, logger *applog.Logger) *ReportService {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &ReportService{
		expenses: expenses,
		loc:      loc,
		now:      time.Now,
		logger:   logger.WithComponent(applog.ComponentReport),
	}
}

// WithClock replaces the time source used for the current and previous month.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// CurrentPeriod is the month containing now in the report time zone.
func (s *ReportService) CurrentPeriod() core.MonthPeriod {
	return core.CurrentPeriod(s.now().In(s.loc))
}

// PreviousPeriod is the month before CurrentPeriod.
func (s *ReportService) PreviousPeriod() core.MonthPeriod {
	return core.PreviousPeriod(s.now().In(s.loc))
}

func (s *ReportService) monthExpenses(ctx context.Context, userID int64, p core.MonthPeriod) ([]core.Expense, error) {
	start, end := p.Window(s.loc)
	expenses, err := s.expenses.ListByUserBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load expenses for %s: %w", p, err)
	}
	return expenses, nil
}

// MonthOverview returns the structured summary of one user's month.
func (s *ReportService) MonthOverview(ctx context.Context, userID int64, p core.MonthPeriod) (core.MonthOverview, error) {
	expenses, err := s.monthExpenses(ctx, userID, p)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return core.NewMonthOverview(p, expenses), nil
}

// BuildMonthReport returns the chat text of one user's month.
func (s *ReportService) BuildMonthReport(ctx context.Context, userID int64, p core.MonthPeriod) (string, error) {
	expenses, err := s.monthExpenses(ctx, userID, p)
	if err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "Month report built",
		applog.FieldUserID, userID,
		applog.FieldYear, p.Year,
		applog.FieldMonth, int(p.Month),
		"expenses", len(expenses))
	return FormatMonthReport(p, core.Aggregate(expenses)), nil
}

// FormatMonthReport renders per-category totals in first-seen order.
func FormatMonthReport(p core.MonthPeriod, totals []core.CategoryAmount) string {
	if len(totals) == 0 {
		return fmt.Sprintf("За %s расходов нет.", p)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Отчёт за %s:\n\n", p)
	for _, c := range totals {
		fmt.Fprintf(&b, "- %s: %s руб.\n", c.Name, c.Amount)
	}
	return b.String()
}
