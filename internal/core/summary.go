package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"category"`
	Amount Money  `json:"total"`
	Count  int    `json:"count"`
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int              `json:"year"`
	Month      int              `json:"month"`
	Total      Money            `json:"total"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
}

// Aggregate sums expenses per category. Categories are compared exactly and
// returned in first-seen order.
func Aggregate(expenses []Expense) []CategoryAmount {
	index := make(map[string]int)
	var out []CategoryAmount
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryAmount{Name: e.Category})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
		out[i].Count++
	}
	return out
}

// NewMonthOverview aggregates the expenses of one period.
func NewMonthOverview(p MonthPeriod, expenses []Expense) MonthOverview {
	ov := MonthOverview{
		Year:       p.Year,
		Month:      int(p.Month),
		Count:      len(expenses),
		ByCategory: Aggregate(expenses),
	}
	for _, c := range ov.ByCategory {
		ov.Total = ov.Total.Add(c.Amount)
	}
	if ov.ByCategory == nil {
		ov.ByCategory = []CategoryAmount{}
	}
	return ov
}
