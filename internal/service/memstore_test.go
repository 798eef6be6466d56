package service

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"PizzaLeaderserver/internal/domain"
)

// memStore backs the profile, friendship, group and pizza store interfaces
// for service tests.
type memStore struct {
	mu sync.Mutex

	profiles    map[string]domain.Profile
	friendships map[int64]domain.Friendship
	groups      map[int64]domain.Group
	memberships []domain.Membership
	pizzas      map[int64]domain.Pizza
	counters    map[string]map[int]int

	nextID      int64
	failCreates bool
}

func newMemStore() *memStore {
	return &memStore{
		profiles:    map[string]domain.Profile{},
		friendships: map[int64]domain.Friendship{},
		groups:      map[int64]domain.Group{},
		pizzas:      map[int64]domain.Pizza{},
		counters:    map[string]map[int]int{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addProfile(id, username string, policy domain.PizzaVisibility) domain.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := domain.Profile{ID: id, Username: username, PizzaVisibility: policy}
	m.profiles[id] = p
	return p
}

func (m *memStore) GetProfileByID(_ context.Context, id string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memStore) GetProfileByUsername(_ context.Context, username string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if strings.EqualFold(p.Username, username) {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrNotFound
}

func (m *memStore) ListProfiles(_ context.Context, ids []string) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Profile{}
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdateProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	m.profiles[p.ID] = p
	return p, nil
}

func (m *memStore) SearchProfiles(_ context.Context, q string, limit int, exclude string) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q = strings.ToLower(q)
	out := []domain.Profile{}
	for _, p := range m.profiles {
		if p.ID == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(p.Username), q) || strings.Contains(strings.ToLower(p.DisplayName), q) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Profile) int { return strings.Compare(a.Username, b.Username) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CreateFriendship(_ context.Context, requesterID, addresseeID string) (domain.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.friendships {
		if f.Involves(requesterID) && f.Involves(addresseeID) {
			return domain.Friendship{}, domain.ErrAlreadyExists
		}
	}
	now := time.Now()
	f := domain.Friendship{ID: m.id(), RequesterID: requesterID, AddresseeID: addresseeID, Status: domain.FriendshipPending, CreatedAt: now, UpdatedAt: now}
	m.friendships[f.ID] = f
	return f, nil
}

func (m *memStore) GetFriendship(_ context.Context, id int64) (domain.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.friendships[id]
	if !ok {
		return domain.Friendship{}, domain.ErrNotFound
	}
	return f, nil
}

func (m *memStore) FindFriendshipsBetween(_ context.Context, a, b string) ([]domain.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Friendship{}
	for _, f := range m.friendships {
		if f.Involves(a) && f.Involves(b) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) AcceptFriendship(_ context.Context, id int64, addresseeID string, when time.Time) (domain.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.friendships[id]
	if !ok || f.Status != domain.FriendshipPending || f.AddresseeID != addresseeID {
		return domain.Friendship{}, domain.ErrNotFound
	}
	f.Status = domain.FriendshipAccepted
	f.UpdatedAt = when
	m.friendships[id] = f
	return f, nil
}

func (m *memStore) DeleteFriendship(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.friendships[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.friendships, id)
	return nil
}

func (m *memStore) ListFriendships(_ context.Context, userID string) ([]domain.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Friendship{}
	for _, f := range m.friendships {
		if f.Involves(userID) {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b domain.Friendship) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) CreateGroup(_ context.Context, g domain.Group) (domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = m.id()
	g.CreatedAt = time.Now()
	m.groups[g.ID] = g
	return g, nil
}

func (m *memStore) GetGroup(_ context.Context, id int64) (domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	return g, nil
}

func (m *memStore) ListGroupsForUser(_ context.Context, userID string) ([]domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Group{}
	for _, g := range m.groups {
		if g.OwnerID == userID || m.findMembership(g.ID, userID) >= 0 {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b domain.Group) int { return int(a.ID - b.ID) })
	return out, nil
}

func (m *memStore) SearchGroups(_ context.Context, q string, limit int) ([]domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Group{}
	for _, g := range m.groups {
		if strings.Contains(strings.ToLower(g.Name), strings.ToLower(q)) {
			out = append(out, g)
		}
	}
	slices.SortFunc(out, func(a, b domain.Group) int { return int(a.ID - b.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) findMembership(groupID int64, userID string) int {
	for i, ms := range m.memberships {
		if ms.GroupID == groupID && ms.UserID == userID {
			return i
		}
	}
	return -1
}

func (m *memStore) GetMembership(_ context.Context, groupID int64, userID string) (domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findMembership(groupID, userID)
	if i < 0 {
		return domain.Membership{}, domain.ErrNotFound
	}
	return m.memberships[i], nil
}

func (m *memStore) CreateMembership(_ context.Context, ms domain.Membership) (domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findMembership(ms.GroupID, ms.UserID) >= 0 {
		return domain.Membership{}, domain.ErrAlreadyExists
	}
	ms.ID = m.id()
	ms.CreatedAt = time.Now()
	ms.UpdatedAt = ms.CreatedAt
	m.memberships = append(m.memberships, ms)
	return ms, nil
}

func (m *memStore) ActivateMembership(_ context.Context, groupID int64, userID string, when time.Time) (domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findMembership(groupID, userID)
	if i < 0 || m.memberships[i].Status != domain.MembershipPending {
		return domain.Membership{}, domain.ErrNotFound
	}
	m.memberships[i].Status = domain.MembershipActive
	m.memberships[i].UpdatedAt = when
	return m.memberships[i], nil
}

func (m *memStore) DeleteMembership(_ context.Context, groupID int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findMembership(groupID, userID)
	if i < 0 {
		return domain.ErrNotFound
	}
	m.memberships = slices.Delete(m.memberships, i, i+1)
	return nil
}

func (m *memStore) ListMemberships(_ context.Context, groupID int64, status domain.MembershipStatus) ([]domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Membership{}
	for _, ms := range m.memberships {
		if ms.GroupID == groupID && (status == "" || ms.Status == status) {
			out = append(out, ms)
		}
	}
	return out, nil
}

func (m *memStore) ActiveGroupIDs(_ context.Context, userID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []int64{}
	for _, g := range m.groups {
		if g.OwnerID == userID {
			out = append(out, g.ID)
		}
	}
	for _, ms := range m.memberships {
		if ms.UserID == userID && ms.Status == domain.MembershipActive && !slices.Contains(out, ms.GroupID) {
			out = append(out, ms.GroupID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memStore) CreatePizza(_ context.Context, p domain.Pizza) (domain.Pizza, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreates {
		return domain.Pizza{}, errTestStore
	}
	p.ID = m.id()
	p.CreatedAt = time.Now()
	m.pizzas[p.ID] = p
	return p, nil
}

func (m *memStore) DeletePizza(_ context.Context, id int64, userID string) (domain.Pizza, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pizzas[id]
	if !ok || p.UserID != userID {
		return domain.Pizza{}, domain.ErrNotFound
	}
	delete(m.pizzas, id)
	return p, nil
}

func (m *memStore) ListPizzas(_ context.Context, userID string, from, to time.Time) ([]domain.Pizza, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Pizza{}
	for _, p := range m.pizzas {
		if p.UserID == userID && !p.EatenAt.Before(from) && p.EatenAt.Before(to) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Pizza) int { return b.EatenAt.Compare(a.EatenAt) })
	return out, nil
}

func (m *memStore) CountPizzas(_ context.Context, userIDs []string, from, to time.Time, ingredient string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, p := range m.pizzas {
		if !slices.Contains(userIDs, p.UserID) || p.EatenAt.Before(from) || !p.EatenAt.Before(to) {
			continue
		}
		if ingredient != "" && !slices.Contains(p.Ingredients, ingredient) {
			continue
		}
		out[p.UserID]++
	}
	return out, nil
}

func (m *memStore) SetYearlyCounter(_ context.Context, c domain.YearlyCounter) (domain.YearlyCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters[c.UserID] == nil {
		m.counters[c.UserID] = map[int]int{}
	}
	m.counters[c.UserID][c.Year] = c.StartCount
	return c, nil
}

func (m *memStore) YearlyCounters(_ context.Context, userIDs []string, year int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{}
	for _, id := range userIDs {
		if v, ok := m.counters[id][year]; ok {
			out[id] = v
		}
	}
	return out, nil
}
