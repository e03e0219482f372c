package bot

import (
	"errors"
	"fmt"
	"strings"

	"rashody/internal/core"
)

const (
	ReportButton = "📊 Отчет"

	CallbackReportCurrent  = "report_current"
	CallbackReportPrevious = "report_previous"
	CallbackReportCustom   = "report_custom"

	welcomeText = "Привет! Я бот учёта расходов.\n" +
		"Просто отправляй: категория сумма\n" +
		"Например: еда 300\n\n" +
		"А для отчёта нажми кнопку ниже."
	choosePeriodText  = "Выберите период:"
	monthPromptText   = "Введите месяц в формате ММ.ГГГГ (например, 07.2025):"
	monthFormatError  = "❌ Неверный формат. Используй ММ.ГГГГ (например, 11.2025)."
	cancelledText     = "Действие отменено."
	tokenIssuedText   = "Ваш токен для API (показывается один раз, предыдущий токен больше не действует):\n%s"
	expenseAddedText  = "Расход %s руб. на \"%s\" добавлен."
	expenseErrorText  = "❌ Ошибка: %s\nФормат: категория сумма"
	internalErrorText = "⚠️ Не удалось обработать запрос, попробуйте позже."
)

var reportOptions = []Option{
	{Label: "Текущий месяц", Data: CallbackReportCurrent},
	{Label: "Предыдущий месяц", Data: CallbackReportPrevious},
	{Label: "Ввести месяц вручную", Data: CallbackReportCustom},
}

// InternalErrorReply is sent by transports when Handle returns an error.
func InternalErrorReply() Reply {
	return Reply{Text: internalErrorText}
}

func expenseAdded(e core.Expense) string {
	return fmt.Sprintf(expenseAddedText, e.Amount.Short(), e.Category)
}

// expenseError renders a parse failure in the user's language followed by
// the underlying error text.
func expenseError(err error) string {
	hint := describeParseError(err)
	if detail := err.Error(); detail != hint {
		hint += " (" + detail + ")"
	}
	return fmt.Sprintf(expenseErrorText, hint)
}

func describeParseError(err error) string {
	var pe *core.ParseError
	input := ""
	if errors.As(err, &pe) {
		if fields := strings.Fields(pe.Input); len(fields) > 0 {
			input = fields[len(fields)-1]
		}
	}
	switch {
	case errors.Is(err, core.ErrTooFewTokens):
		return "нужно указать категорию и сумму"
	case errors.Is(err, core.ErrNegativeAmount):
		return fmt.Sprintf("сумма не может быть отрицательной: %q", input)
	case errors.Is(err, core.ErrTooManyDecimals):
		return fmt.Sprintf("не больше двух знаков после запятой: %q", input)
	case errors.Is(err, core.ErrAmountTooLarge):
		return fmt.Sprintf("слишком большая сумма: %q", input)
	case errors.Is(err, core.ErrInvalidAmount):
		return fmt.Sprintf("не удалось распознать сумму: %q", input)
	case errors.Is(err, core.ErrCategoryTooLong):
		return fmt.Sprintf("категория длиннее %d символов", core.MaxCategoryLength)
	case errors.Is(err, core.ErrEmptyCategory):
		return "пустая категория"
	default:
		return err.Error()
	}
}
