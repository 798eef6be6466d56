package domain

import "time"

// PizzaVisibility is the owner's policy for who may see their pizzas.
type PizzaVisibility string

const (
	VisibilityEveryone PizzaVisibility = "everyone"
	VisibilityFriends  PizzaVisibility = "friends"
	VisibilityGroups   PizzaVisibility = "groups"
	VisibilityNone     PizzaVisibility = "none"
)

func (v PizzaVisibility) Valid() bool {
	switch v {
	case VisibilityEveryone, VisibilityFriends, VisibilityGroups, VisibilityNone:
		return true
	}
	return false
}

// Effective resolves an unset policy to everyone.
func (v PizzaVisibility) Effective() PizzaVisibility {
	if v == "" {
		return VisibilityEveryone
	}
	return v
}

type Profile struct {
	ID              string          `json:"id"`
	Username        string          `json:"username"`
	DisplayName     string          `json:"display_name,omitempty"`
	PizzaVisibility PizzaVisibility `json:"pizza_visibility,omitempty"`
	FavoriteGroupID *int64          `json:"favorite_group_id,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p Profile) Summary() UserSummary {
	return UserSummary{ID: p.ID, Username: p.Username, DisplayName: p.DisplayName}
}

type UserSummary struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
}

// ValidUsername allows 3-24 ASCII letters, digits and underscores.
func ValidUsername(s string) bool {
	if len(s) < 3 || len(s) > 24 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
