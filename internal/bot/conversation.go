// Package bot implements the chat front end: a transport-agnostic
// conversation controller and its Telegram transport.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rashody/internal/core"
	applog "rashody/internal/log"
)

type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventCallback
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// Event is one inbound chat interaction.
type Event struct {
	Kind     EventKind
	ChatID   int64
	Identity core.Identity
	// Command is the command name without the leading slash.
	Command string
	// Text is the message body for text events.
	Text string
	// Data is the payload of the selected inline option.
	Data string
}

// Option is one inline choice attached to a reply.
type Option struct {
	Label string
	Data  string
}

// Reply is one outbound message. MainKeyboard asks the transport to show the
// persistent report keyboard, Options become inline choices.
type Reply struct {
	Text         string
	MainKeyboard bool
	Options      []Option
}

type Accounts interface {
	Resolve(ctx context.Context, identity core.Identity) (core.User, error)
	IssueToken(ctx context.Context, userID int64) (string, error)
}

type Expenses interface {
	CreateExpense(ctx context.Context, userID int64, category string, amount core.Money) (core.Expense, error)
}

type Reports interface {
	BuildMonthReport(ctx context.Context, userID int64, p core.MonthPeriod) (string, error)
	CurrentPeriod() core.MonthPeriod
	PreviousPeriod() core.MonthPeriod
}

// Controller routes chat events. It holds no per-chat state: the caller
// passes the session in and stores the returned one.
type Controller struct {
	accounts Accounts
	expenses Expenses
	reports  Reports
	now      func() time.Time
	logger   *applog.Logger
}

func NewController(accounts Accounts, expenses Expenses, reports Reports, logger *applog.Logger) *Controller {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Controller{
		accounts: accounts,
		expenses: expenses,
		reports:  reports,
		now:      time.Now,
		logger:   logger.WithComponent(applog.ComponentBot),
	}
}

// Handle processes one event. Input errors are answered inline; a non-nil
// error means a store failure, in which case the returned session is still
// the one to keep.
func (c *Controller) Handle(ctx context.Context, ev Event, sess Session) (Session, []Reply, error) {
	sess.ChatID = ev.ChatID
	next, replies, err := c.dispatch(ctx, ev, sess)
	next.UpdatedAt = c.now()

	if next.State != sess.State {
		c.logger.DebugContext(ctx, "Session state changed",
			applog.FieldChatID, ev.ChatID,
			applog.FieldEvent, ev.Kind.String(),
			applog.FieldState, next.State.String())
	}
	return next, replies, err
}

func (c *Controller) dispatch(ctx context.Context, ev Event, sess Session) (Session, []Reply, error) {
	switch ev.Kind {
	case EventCommand:
		return c.handleCommand(ctx, ev, sess)
	case EventCallback:
		return c.handleCallback(ctx, ev, sess)
	case EventText:
		if sess.State == StateAwaitingMonth {
			return c.handleMonthInput(ctx, ev, sess)
		}
		if strings.TrimSpace(ev.Text) == ReportButton {
			return sess, []Reply{{Text: choosePeriodText, Options: reportOptions}}, nil
		}
		return c.handleExpense(ctx, ev, sess)
	default:
		return sess, nil, nil
	}
}

func (c *Controller) handleCommand(ctx context.Context, ev Event, sess Session) (Session, []Reply, error) {
	switch ev.Command {
	case "start", "help":
		sess.State = StateIdle
		if _, err := c.accounts.Resolve(ctx, ev.Identity); err != nil {
			return sess, nil, err
		}
		return sess, []Reply{{Text: welcomeText, MainKeyboard: true}}, nil

	case "cancel":
		sess.State = StateIdle
		return sess, []Reply{{Text: cancelledText, MainKeyboard: true}}, nil

	case "token":
		user, err := c.accounts.Resolve(ctx, ev.Identity)
		if err != nil {
			return sess, nil, err
		}
		token, err := c.accounts.IssueToken(ctx, user.ID)
		if err != nil {
			return sess, nil, err
		}
		return sess, []Reply{{Text: fmt.Sprintf(tokenIssuedText, token)}}, nil

	default:
		return sess, nil, nil
	}
}

func (c *Controller) handleCallback(ctx context.Context, ev Event, sess Session) (Session, []Reply, error) {
	var period core.MonthPeriod
	switch ev.Data {
	case CallbackReportCustom:
		sess.State = StateAwaitingMonth
		return sess, []Reply{{Text: monthPromptText}}, nil
	case CallbackReportCurrent:
		period = c.reports.CurrentPeriod()
	case CallbackReportPrevious:
		period = c.reports.PreviousPeriod()
	default:
		return sess, nil, nil
	}
	return c.report(ctx, ev, sess, period)
}

func (c *Controller) handleMonthInput(ctx context.Context, ev Event, sess Session) (Session, []Reply, error) {
	// One attempt only: the session is idle again whatever the outcome.
	sess.State = StateIdle

	period, err := core.ParseMonthPeriod(ev.Text)
	if err != nil {
		return sess, []Reply{{Text: monthFormatError}}, nil
	}
	return c.report(ctx, ev, sess, period)
}

func (c *Controller) report(ctx context.Context, ev Event, sess Session, p core.MonthPeriod) (Session, []Reply, error) {
	user, err := c.accounts.Resolve(ctx, ev.Identity)
	if err != nil {
		return sess, nil, err
	}
	text, err := c.reports.BuildMonthReport(ctx, user.ID, p)
	if err != nil {
		return sess, nil, err
	}
	return sess, []Reply{{Text: text}}, nil
}

func (c *Controller) handleExpense(ctx context.Context, ev Event, sess Session) (Session, []Reply, error) {
	user, err := c.accounts.Resolve(ctx, ev.Identity)
	if err != nil {
		return sess, nil, err
	}

	category, amount, err := core.ParseExpenseLine(ev.Text)
	if err != nil {
		return sess, []Reply{{Text: expenseError(err)}}, nil
	}

	e, err := c.expenses.CreateExpense(ctx, user.ID, category, amount)
	if err != nil {
		if core.IsValidation(err) {
			return sess, []Reply{{Text: expenseError(err)}}, nil
		}
		return sess, nil, err
	}

	c.logger.InfoContext(ctx, "Expense added from chat",
		applog.FieldChatID, ev.ChatID,
		applog.FieldUserID, user.ID,
		applog.FieldExpenseID, e.ID)
	return sess, []Reply{{Text: expenseAdded(e)}}, nil
}
