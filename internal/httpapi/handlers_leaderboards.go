package httpapi

import (
	"net/http"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/leaderboard"
)

// leaderboardQuery reads ?year&month&ingredient&mode&limit&radius&page&page_size&q.
func leaderboardQuery(r *http.Request) (domain.Period, leaderboard.Options, error) {
	ints, err := queryInts(r, "year", "month", "limit", "radius", "page", "page_size")
	if err != nil {
		return domain.Period{}, leaderboard.Options{}, err
	}
	q := r.URL.Query()
	mode, err := leaderboard.ParseMode(q.Get("mode"))
	if err != nil {
		return domain.Period{}, leaderboard.Options{}, err
	}

	period := domain.Period{
		Year:       ints["year"],
		Month:      ints["month"],
		Ingredient: q.Get("ingredient"),
	}
	opts := leaderboard.Options{
		Mode:     mode,
		Limit:    ints["limit"],
		Radius:   ints["radius"],
		Page:     ints["page"],
		PageSize: ints["page_size"],
		Query:    q.Get("q"),
	}
	return period, opts, nil
}

func (a *api) handleLeaderboardFriends(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	period, opts, err := leaderboardQuery(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	board, err := a.leaderboardSvc.FriendsLeaderboard(r.Context(), u.ID, period, opts)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, board)
}

func (a *api) handleLeaderboardGroup(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	period, opts, err := leaderboardQuery(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	board, err := a.leaderboardSvc.GroupLeaderboard(r.Context(), u.ID, id, period, opts)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, board)
}
