package domain

import (
	"sort"
	"strings"
	"time"
)

type Pizza struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	EatenAt     time.Time `json:"eaten_at"`
	Ingredients []string  `json:"ingredients"`
	Note        string    `json:"note,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	PhotoKey    string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

type YearlyCounter struct {
	UserID     string `json:"user_id"`
	Year       int    `json:"year"`
	StartCount int    `json:"start_count"`
}

// Period selects the pizzas that count toward a leaderboard. Month is 1-12,
// or 0 for the whole year.
type Period struct {
	Year       int
	Month      int
	Ingredient string
}

// UsesYearlyOffset reports whether the yearly starting count applies.
func (p Period) UsesYearlyOffset() bool {
	return p.Month == 0 && p.Ingredient == ""
}

func (p Period) Bounds() (time.Time, time.Time) {
	if p.Month == 0 {
		start := time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

type IngredientStat struct {
	Ingredient string `json:"ingredient"`
	Count      int    `json:"count"`
}

// NormalizeIngredients lower-cases, trims and deduplicates tags, keeping the
// first occurrence order.
func NormalizeIngredients(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// TallyIngredients counts ingredient tags across pizzas, most frequent first.
func TallyIngredients(pizzas []Pizza) []IngredientStat {
	counts := map[string]int{}
	for _, p := range pizzas {
		for _, ing := range p.Ingredients {
			counts[ing]++
		}
	}
	out := make([]IngredientStat, 0, len(counts))
	for k, v := range counts {
		out = append(out, IngredientStat{Ingredient: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ingredient < out[j].Ingredient
	})
	return out
}
