package httpapi

import (
	"net/http"
	"strings"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/service"
)

type meResponse struct {
	User    userResponse   `json:"user"`
	Profile domain.Profile `json:"profile"`
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	p, err := a.profileSvc.GetProfile(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, meResponse{User: newUserResponse(u), Profile: p})
}

// updateProfileRequest patches only the fields present. A favorite_group_id
// of 0 clears the favorite group.
type updateProfileRequest struct {
	DisplayName     *string `json:"display_name"`
	PizzaVisibility *string `json:"pizza_visibility"`
	FavoriteGroupID *int64  `json:"favorite_group_id"`
}

func (a *api) handleMeUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	params := service.UpdateProfileParams{
		DisplayName:     req.DisplayName,
		FavoriteGroupID: req.FavoriteGroupID,
	}
	if req.PizzaVisibility != nil {
		v := domain.PizzaVisibility(strings.ToLower(strings.TrimSpace(*req.PizzaVisibility)))
		params.PizzaVisibility = &v
	}

	p, err := a.profileSvc.UpdateProfile(r.Context(), u.ID, params)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

type profileResponse struct {
	Profile       domain.Profile       `json:"profile"`
	Relationship  *domain.Relationship `json:"relationship,omitempty"`
	CanViewPizzas bool                 `json:"can_view_pizzas"`
}

// handleProfileGet works for anonymous viewers too; they get no relationship.
func (a *api) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	p, err := a.profileSvc.GetProfileByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	viewer := viewerID(r.Context())
	resp := profileResponse{Profile: p}
	if viewer != "" && a.friendsSvc != nil {
		rel, err := a.friendsSvc.Relationship(r.Context(), viewer, p.ID)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		resp.Relationship = &rel
	}
	if a.visibilitySvc != nil {
		resp.CanViewPizzas, err = a.visibilitySvc.CanView(r.Context(), viewer, p)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (a *api) handleProfileSearch(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	ints, err := queryInts(r, "limit")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out, err := a.profileSvc.Search(r.Context(), r.URL.Query().Get("q"), ints["limit"], u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}
