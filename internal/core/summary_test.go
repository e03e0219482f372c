package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exp(category string, cents int64) Expense {
	return Expense{UserID: 1, Category: category, Amount: MoneyFromCents(cents)}
}

func TestAggregateKeepsFirstSeenOrder(t *testing.T) {
	got := Aggregate([]Expense{exp("food", 1000), exp("transport", 500), exp("food", 300)})
	require.Len(t, got, 2)
	assert.Equal(t, "food", got[0].Name)
	assert.Equal(t, "13.00", got[0].Amount.String())
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "transport", got[1].Name)
	assert.Equal(t, "5.00", got[1].Amount.String())
}

func TestAggregateIsExactMatch(t *testing.T) {
	got := Aggregate([]Expense{exp("Food", 100), exp("food", 100), exp("food ", 100)})
	assert.Len(t, got, 3)
}

func TestNewMonthOverview(t *testing.T) {
	p := MonthPeriod{Year: 2025, Month: time.July}
	ov := NewMonthOverview(p, []Expense{exp("еда", 30000), exp("еда", 15000), exp("такси", 1250)})
	assert.Equal(t, 2025, ov.Year)
	assert.Equal(t, 7, ov.Month)
	assert.Equal(t, 3, ov.Count)
	assert.Equal(t, "462.50", ov.Total.String())
	require.Len(t, ov.ByCategory, 2)

	empty := NewMonthOverview(p, nil)
	assert.NotNil(t, empty.ByCategory)
	assert.True(t, empty.Total.IsZero())
}

func TestExpenseValidate(t *testing.T) {
	assert.NoError(t, exp("ok", 100).Validate())
	assert.ErrorIs(t, Expense{Category: "x"}.Validate(), ErrInvalidOwner)
	assert.ErrorIs(t, exp(" ", 1).Validate(), ErrEmptyCategory)
	long := make([]rune, MaxCategoryLength+1)
	for i := range long {
		long[i] = 'я'
	}
	assert.ErrorIs(t, exp(string(long), 1).Validate(), ErrCategoryTooLong)
}

func TestIdentityUsername(t *testing.T) {
	id := Identity{ExternalID: 42, FirstName: "Ann"}
	assert.Equal(t, "tg_42", id.Username())
	u := id.NewUser()
	assert.Equal(t, "tg_42", u.Username)
	assert.Equal(t, "", u.LastName)
}
