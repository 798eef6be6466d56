package httpapi

import (
	"net/http"

	"PizzaLeaderserver/internal/domain"
)

func (a *api) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	out, err := a.friendsSvc.ListOverview(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

type createFriendRequestRequest struct {
	Username string `json:"username"`
}

func (a *api) handleFriendsCreateRequest(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	var req createFriendRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	fr, err := a.friendsSvc.RequestFriendship(r.Context(), u.ID, req.Username)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, fr)
}

func (a *api) handleFriendsAccept(w http.ResponseWriter, r *http.Request) {
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

	f, err := a.friendsSvc.AcceptFriendship(r.Context(), u.ID, id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, f)
}

// handleFriendsRemove unfriends, cancels or declines depending on the edge.
func (a *api) handleFriendsRemove(w http.ResponseWriter, r *http.Request) {
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

	if err := a.friendsSvc.RemoveFriendship(r.Context(), u.ID, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
