// Package leaderboard ranks participants by total score and windows the
// ranking for display.
//
// A participant's total is its base offset plus its period count. Rows are
// sorted by total, highest first; equal totals are ordered by username
// (case-insensitive) and then by user id so the ranking never depends on
// fetch order. Every returned row carries its rank within the full ranking,
// whatever window was requested.
package leaderboard

import (
	"fmt"
	"slices"
	"strings"

	"PizzaLeaderserver/internal/domain"
)

type Mode string

const (
	ModeTop    Mode = "top"
	ModeAround Mode = "around"
	ModePage   Mode = "page"
	ModeSearch Mode = "search"
)

const (
	DefaultLimit    = 10
	DefaultRadius   = 2
	DefaultPageSize = 25
	MaxWindow       = 200
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeTop:
		return ModeTop, nil
	case ModeAround:
		return ModeAround, nil
	case ModePage:
		return ModePage, nil
	case ModeSearch:
		return ModeSearch, nil
	}
	return "", domain.NewValidationError(map[string]string{"mode": "must be one of top, around, page, search"})
}

type Participant struct {
	UserID      string
	Username    string
	DisplayName string
	Base        int
	Count       int
}

type Options struct {
	Mode Mode
	// Limit is the row count for top mode.
	Limit int
	// Radius is k in a window of 2k+1 rows around the center.
	Radius   int
	PageSize int
	// Page is 1-based.
	Page  int
	Query string
}

type Row struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Base        int    `json:"base"`
	Count       int    `json:"count"`
	Total       int    `json:"total"`
	IsSelf      bool   `json:"is_self"`
}

type Board struct {
	Mode      Mode   `json:"mode"`
	Rows      []Row  `json:"rows"`
	Total     int    `json:"total_participants"`
	SelfRank  int    `json:"self_rank,omitempty"`
	Center    string `json:"center_user_id,omitempty"`
	Page      int    `json:"page,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
}

func (o Options) normalized() (Options, error) {
	fields := map[string]string{}
	if o.Mode == "" {
		o.Mode = ModeTop
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit < 0 || o.Limit > MaxWindow {
		fields["limit"] = fmt.Sprintf("must be between 1 and %d", MaxWindow)
	}
	if o.Radius == 0 {
		o.Radius = DefaultRadius
	}
	if o.Radius < 0 || 2*o.Radius+1 > MaxWindow {
		fields["radius"] = "out of range"
	}
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize < 0 || o.PageSize > MaxWindow {
		fields["page_size"] = fmt.Sprintf("must be between 1 and %d", MaxWindow)
	}
	if o.Mode == ModePage {
		if o.Page == 0 {
			o.Page = 1
		}
		if o.Page < 0 {
			fields["page"] = "must be at least 1"
		}
	}
	o.Query = strings.TrimSpace(o.Query)
	if o.Mode == ModeSearch && o.Query == "" {
		fields["q"] = "required"
	}
	if len(fields) > 0 {
		return Options{}, domain.NewValidationError(fields)
	}
	return o, nil
}

// Rank sorts participants and assigns 1-based ranks. Duplicate user ids
// collapse to their first occurrence.
func Rank(participants []Participant, selfID string) []Row {
	rows := make([]Row, 0, len(participants))
	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if p.UserID == "" || seen[p.UserID] {
			continue
		}
		seen[p.UserID] = true
		rows = append(rows, Row{
			UserID:      p.UserID,
			Username:    p.Username,
			DisplayName: p.DisplayName,
			Base:        p.Base,
			Count:       p.Count,
			Total:       p.Base + p.Count,
			IsSelf:      selfID != "" && p.UserID == selfID,
		})
	}

	slices.SortStableFunc(rows, func(a, b Row) int {
		if a.Total != b.Total {
			if a.Total > b.Total {
				return -1
			}
			return 1
		}
		if c := strings.Compare(strings.ToLower(a.Username), strings.ToLower(b.Username)); c != 0 {
			return c
		}
		return strings.Compare(a.UserID, b.UserID)
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// Build ranks participants and applies the requested window. An empty
// participant set yields an empty board in every mode.
func Build(participants []Participant, selfID string, opts Options) (Board, error) {
	opts, err := opts.normalized()
	if err != nil {
		return Board{}, err
	}

	ranked := Rank(participants, selfID)
	board := Board{Mode: opts.Mode, Total: len(ranked), Rows: []Row{}}
	selfIdx := indexOf(ranked, selfID)
	if selfIdx >= 0 {
		board.SelfRank = ranked[selfIdx].Rank
	}
	if len(ranked) == 0 {
		return board, nil
	}

	switch opts.Mode {
	case ModeAround:
		if selfIdx < 0 {
			board.Mode = ModeTop
			board.Rows = topN(ranked, opts.Limit)
			return board, nil
		}
		board.Center = selfID
		board.Rows = around(ranked, selfIdx, opts.Radius)
	case ModePage:
		board.Page = opts.Page
		board.PageCount = (len(ranked) + opts.PageSize - 1) / opts.PageSize
		board.Rows = page(ranked, opts.Page, opts.PageSize)
	case ModeSearch:
		idx := search(ranked, opts.Query)
		if idx < 0 {
			return Board{}, domain.ErrNoMatch
		}
		board.Center = ranked[idx].UserID
		board.Rows = around(ranked, idx, opts.Radius)
	default:
		board.Mode = ModeTop
		board.Rows = topN(ranked, opts.Limit)
	}
	return board, nil
}

func indexOf(rows []Row, userID string) int {
	if userID == "" {
		return -1
	}
	for i, r := range rows {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}

func topN(rows []Row, n int) []Row {
	if n > len(rows) {
		n = len(rows)
	}
	return slices.Clone(rows[:n])
}

// around returns rows[center-k : center+k+1], truncated at both ends.
func around(rows []Row, center, k int) []Row {
	start := max(center-k, 0)
	end := min(center+k+1, len(rows))
	return slices.Clone(rows[start:end])
}

func page(rows []Row, p, size int) []Row {
	start := (p - 1) * size
	if start >= len(rows) {
		return []Row{}
	}
	end := min(start+size, len(rows))
	return slices.Clone(rows[start:end])
}

// search finds the best ranked row whose username or display name contains q.
func search(rows []Row, q string) int {
	q = strings.ToLower(q)
	for i, r := range rows {
		if strings.Contains(strings.ToLower(r.Username), q) || strings.Contains(strings.ToLower(r.DisplayName), q) {
			return i
		}
	}
	return -1
}
