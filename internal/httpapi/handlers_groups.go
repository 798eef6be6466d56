package httpapi

import (
	"net/http"
	"strings"

	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/service"
)

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

func (a *api) handleGroupsCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadJSON(w)
		return
	}

	g, err := a.groupsSvc.CreateGroup(r.Context(), u.ID, service.CreateGroupParams{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  domain.GroupVisibility(strings.ToLower(strings.TrimSpace(req.Visibility))),
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, g)
}

func (a *api) handleGroupsMine(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	groups, err := a.groupsSvc.ListGroupsForUser(r.Context(), u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (a *api) handleGroupsSearch(w http.ResponseWriter, r *http.Request) {
	ints, err := queryInts(r, "limit")
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	groups, err := a.groupsSvc.SearchGroups(r.Context(), r.URL.Query().Get("q"), ints["limit"])
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (a *api) handleGroupsGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	g, err := a.groupsSvc.GetGroup(r.Context(), viewerID(r.Context()), id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, g)
}

func (a *api) handleGroupsJoin(w http.ResponseWriter, r *http.Request) {
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

	m, err := a.groupsSvc.JoinGroup(r.Context(), u.ID, id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if m.Status == domain.MembershipPending {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, m)
}

func (a *api) handleGroupsLeave(w http.ResponseWriter, r *http.Request) {
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

	if err := a.groupsSvc.LeaveGroup(r.Context(), u.ID, id); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleGroupsParticipants(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	users, err := a.groupsSvc.ListActiveParticipants(r.Context(), viewerID(r.Context()), id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"participants": users})
}

func (a *api) handleGroupsPending(w http.ResponseWriter, r *http.Request) {
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

	pending, err := a.groupsSvc.ListPendingMembers(r.Context(), u.ID, id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (a *api) handleGroupsApprove(w http.ResponseWriter, r *http.Request) {
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

	m, err := a.groupsSvc.ApproveMember(r.Context(), u.ID, id, r.PathValue("userID"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

func (a *api) handleGroupsRemoveMember(w http.ResponseWriter, r *http.Request) {
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

	if err := a.groupsSvc.RemoveMember(r.Context(), u.ID, id, r.PathValue("userID")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
