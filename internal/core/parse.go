package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTooFewTokens is returned when an expense line has no category words.
var ErrTooFewTokens = errors.New("expected at least a category and an amount")

// ParseError reports malformed user input. It is always recoverable: the
// caller shows it to the user together with the expected format.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a user input error rather than a
// store or transport failure.
func IsValidation(err error) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return true
	}
	for _, target := range []error{
		ErrInvalidAmount, ErrNegativeAmount, ErrTooManyDecimals, ErrAmountTooLarge,
		ErrEmptyCategory, ErrCategoryTooLong, ErrInvalidMonth, ErrInvalidYear,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseExpenseLine splits "category words amount" into its parts.
//
// The last whitespace-delimited token is the amount, every preceding token
// rejoined with single spaces is the category.
func ParseExpenseLine(text string) (string, Money, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return "", Money{}, &ParseError{Input: text, Err: ErrTooFewTokens}
	}

	amount, err := ParseMoney(tokens[len(tokens)-1])
	if err != nil {
		return "", Money{}, &ParseError{Input: text, Err: err}
	}

	category := strings.Join(tokens[:len(tokens)-1], " ")
	if err := ValidateCategory(category); err != nil {
		return "", Money{}, &ParseError{Input: text, Err: err}
	}
	return category, amount, nil
}

// ParseMonthPeriod parses manual month input in "MM.YYYY" form.
func ParseMonthPeriod(text string) (MonthPeriod, error) {
	parts := strings.Split(strings.TrimSpace(text), ".")
	if len(parts) != 2 {
		return MonthPeriod{}, &ParseError{Input: text, Err: fmt.Errorf("%w: expected MM.YYYY", ErrInvalidMonth)}
	}
	month, err := parseInt(parts[0])
	if err != nil {
		return MonthPeriod{}, &ParseError{Input: text, Err: fmt.Errorf("%w: %v", ErrInvalidMonth, err)}
	}
	year, err := parseInt(parts[1])
	if err != nil {
		return MonthPeriod{}, &ParseError{Input: text, Err: fmt.Errorf("%w: %v", ErrInvalidYear, err)}
	}
	p, err := NewMonthPeriod(year, month)
	if err != nil {
		return MonthPeriod{}, &ParseError{Input: text, Err: err}
	}
	return p, nil
}
