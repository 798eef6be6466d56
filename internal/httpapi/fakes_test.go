package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"PizzaLeaderserver/internal/auth"
	"PizzaLeaderserver/internal/domain"
	"PizzaLeaderserver/internal/service"
	"PizzaLeaderserver/internal/visibility"
)

// fakeDB stands in for every postgres store behind the router.
type fakeDB struct {
	mu sync.Mutex

	users       map[string]domain.UserWithPassword
	sessions    map[string]domain.Session
	profiles    map[string]domain.Profile
	friendships map[int64]domain.Friendship
	groups      map[int64]domain.Group
	memberships []domain.Membership
	pizzas      map[int64]domain.Pizza
	counters    map[string]map[int]int

	nextID int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:       map[string]domain.UserWithPassword{},
		sessions:    map[string]domain.Session{},
		profiles:    map[string]domain.Profile{},
		friendships: map[int64]domain.Friendship{},
		groups:      map[int64]domain.Group{},
		pizzas:      map[int64]domain.Pizza{},
		counters:    map[string]map[int]int{},
	}
}

func (db *fakeDB) id() int64 {
	db.nextID++
	return db.nextID
}

// users

func (db *fakeDB) insertUser(email, username, hash string) (domain.User, error) {
	for _, u := range db.users {
		if strings.EqualFold(u.Username, username) {
			return domain.User{}, domain.ErrUsernameTaken
		}
		if email != "" && strings.EqualFold(u.Email, email) {
			return domain.User{}, domain.ErrEmailTaken
		}
	}
	now := time.Now()
	u := domain.User{ID: uuid.NewString(), Email: email, Username: username, CreatedAt: now, UpdatedAt: now}
	db.users[u.ID] = domain.UserWithPassword{User: u, PasswordHash: hash}
	db.profiles[u.ID] = domain.Profile{ID: u.ID, Username: username, UpdatedAt: now}
	return u, nil
}

func (db *fakeDB) CreateUser(_ context.Context, email, username, passwordHash string) (domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertUser(email, username, passwordHash)
}

func (db *fakeDB) CreateUserWithExternalAccount(_ context.Context, _, _, email, username string) (domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertUser(email, username, "")
}

func (db *fakeDB) GetUserByID(_ context.Context, id string) (domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	u, ok := db.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u.User, nil
}

func (db *fakeDB) GetUserByLogin(_ context.Context, login string) (domain.UserWithPassword, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, u := range db.users {
		if strings.EqualFold(u.Username, login) || (u.Email != "" && strings.EqualFold(u.Email, login)) {
			return u, nil
		}
	}
	return domain.UserWithPassword{}, domain.ErrNotFound
}

func (db *fakeDB) GetUserByExternalAccount(context.Context, string, string) (domain.User, error) {
	return domain.User{}, domain.ErrNotFound
}

func (db *fakeDB) SetPasswordHash(_ context.Context, userID, hash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := db.users[userID]
	u.PasswordHash = hash
	db.users[userID] = u
	return nil
}

func (db *fakeDB) SetLastLogin(context.Context, string, time.Time) error { return nil }

// sessions

func (db *fakeDB) CreateSession(_ context.Context, userID string, expiresAt time.Time, _, _ string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := uuid.NewString()
	db.sessions[id] = domain.Session{ID: id, UserID: userID, CreatedAt: time.Now(), ExpiresAt: expiresAt}
	return id, nil
}

func (db *fakeDB) GetSession(_ context.Context, id string) (domain.Session, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return s, nil
}

func (db *fakeDB) RevokeSession(_ context.Context, id string, when time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	s, ok := db.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.RevokedAt = &when
	db.sessions[id] = s
	return nil
}

// profiles

func (db *fakeDB) GetProfileByID(_ context.Context, id string) (domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.profiles[id]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

func (db *fakeDB) GetProfileByUsername(_ context.Context, username string) (domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range db.profiles {
		if strings.EqualFold(p.Username, username) {
			return p, nil
		}
	}
	return domain.Profile{}, domain.ErrNotFound
}

func (db *fakeDB) ListProfiles(_ context.Context, ids []string) ([]domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Profile{}
	for _, id := range ids {
		if p, ok := db.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (db *fakeDB) UpdateProfile(_ context.Context, p domain.Profile) (domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.profiles[p.ID]; !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	p.UpdatedAt = time.Now()
	db.profiles[p.ID] = p
	return p, nil
}

func (db *fakeDB) SearchProfiles(_ context.Context, q string, limit int, exclude string) ([]domain.Profile, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Profile{}
	for _, p := range db.profiles {
		if p.ID != exclude && strings.Contains(strings.ToLower(p.Username+" "+p.DisplayName), strings.ToLower(q)) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Profile) int { return strings.Compare(a.Username, b.Username) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// friendships

func (db *fakeDB) CreateFriendship(_ context.Context, requesterID, addresseeID string) (domain.Friendship, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, f := range db.friendships {
		if f.Involves(requesterID) && f.Involves(addresseeID) {
			return domain.Friendship{}, domain.ErrAlreadyExists
		}
	}
	now := time.Now()
	f := domain.Friendship{ID: db.id(), RequesterID: requesterID, AddresseeID: addresseeID, Status: domain.FriendshipPending, CreatedAt: now, UpdatedAt: now}
	db.friendships[f.ID] = f
	return f, nil
}

func (db *fakeDB) GetFriendship(_ context.Context, id int64) (domain.Friendship, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	f, ok := db.friendships[id]
	if !ok {
		return domain.Friendship{}, domain.ErrNotFound
	}
	return f, nil
}

func (db *fakeDB) FindFriendshipsBetween(_ context.Context, a, b string) ([]domain.Friendship, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Friendship{}
	for _, f := range db.friendships {
		if f.Involves(a) && f.Involves(b) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (db *fakeDB) AcceptFriendship(_ context.Context, id int64, addresseeID string, when time.Time) (domain.Friendship, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	f, ok := db.friendships[id]
	if !ok || f.Status != domain.FriendshipPending || f.AddresseeID != addresseeID {
		return domain.Friendship{}, domain.ErrNotFound
	}
	f.Status = domain.FriendshipAccepted
	f.UpdatedAt = when
	db.friendships[id] = f
	return f, nil
}

func (db *fakeDB) DeleteFriendship(_ context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.friendships[id]; !ok {
		return domain.ErrNotFound
	}
	delete(db.friendships, id)
	return nil
}

func (db *fakeDB) ListFriendships(_ context.Context, userID string) ([]domain.Friendship, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Friendship{}
	for _, f := range db.friendships {
		if f.Involves(userID) {
			out = append(out, f)
		}
	}
	return out, nil
}

// groups

func (db *fakeDB) CreateGroup(_ context.Context, g domain.Group) (domain.Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	g.ID = db.id()
	g.CreatedAt = time.Now()
	db.groups[g.ID] = g
	return g, nil
}

func (db *fakeDB) GetGroup(_ context.Context, id int64) (domain.Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	g, ok := db.groups[id]
	if !ok {
		return domain.Group{}, domain.ErrNotFound
	}
	return g, nil
}

func (db *fakeDB) ListGroupsForUser(_ context.Context, userID string) ([]domain.Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Group{}
	for _, g := range db.groups {
		if g.OwnerID == userID || db.findMembership(g.ID, userID) >= 0 {
			out = append(out, g)
		}
	}
	return out, nil
}

func (db *fakeDB) SearchGroups(_ context.Context, q string, limit int) ([]domain.Group, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Group{}
	for _, g := range db.groups {
		if g.Visibility != domain.GroupPrivate && strings.Contains(strings.ToLower(g.Name), strings.ToLower(q)) {
			out = append(out, g)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (db *fakeDB) findMembership(groupID int64, userID string) int {
	for i, m := range db.memberships {
		if m.GroupID == groupID && m.UserID == userID {
			return i
		}
	}
	return -1
}

func (db *fakeDB) GetMembership(_ context.Context, groupID int64, userID string) (domain.Membership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	i := db.findMembership(groupID, userID)
	if i < 0 {
		return domain.Membership{}, domain.ErrNotFound
	}
	return db.memberships[i], nil
}

func (db *fakeDB) CreateMembership(_ context.Context, m domain.Membership) (domain.Membership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.findMembership(m.GroupID, m.UserID) >= 0 {
		return domain.Membership{}, domain.ErrAlreadyExists
	}
	m.ID = db.id()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	db.memberships = append(db.memberships, m)
	return m, nil
}

func (db *fakeDB) ActivateMembership(_ context.Context, groupID int64, userID string, when time.Time) (domain.Membership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	i := db.findMembership(groupID, userID)
	if i < 0 || db.memberships[i].Status != domain.MembershipPending {
		return domain.Membership{}, domain.ErrNotFound
	}
	db.memberships[i].Status = domain.MembershipActive
	db.memberships[i].UpdatedAt = when
	return db.memberships[i], nil
}

func (db *fakeDB) DeleteMembership(_ context.Context, groupID int64, userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	i := db.findMembership(groupID, userID)
	if i < 0 {
		return domain.ErrNotFound
	}
	db.memberships = slices.Delete(db.memberships, i, i+1)
	return nil
}

func (db *fakeDB) ListMemberships(_ context.Context, groupID int64, status domain.MembershipStatus) ([]domain.Membership, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Membership{}
	for _, m := range db.memberships {
		if m.GroupID == groupID && m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (db *fakeDB) ActiveGroupIDs(_ context.Context, userID string) ([]int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []int64{}
	for _, g := range db.groups {
		if g.OwnerID == userID {
			out = append(out, g.ID)
		}
	}
	for _, m := range db.memberships {
		if m.UserID == userID && m.Status == domain.MembershipActive && !slices.Contains(out, m.GroupID) {
			out = append(out, m.GroupID)
		}
	}
	return out, nil
}

// pizzas

func (db *fakeDB) CreatePizza(_ context.Context, p domain.Pizza) (domain.Pizza, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = db.id()
	p.CreatedAt = time.Now()
	db.pizzas[p.ID] = p
	return p, nil
}

func (db *fakeDB) DeletePizza(_ context.Context, id int64, userID string) (domain.Pizza, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.pizzas[id]
	if !ok || p.UserID != userID {
		return domain.Pizza{}, domain.ErrNotFound
	}
	delete(db.pizzas, id)
	return p, nil
}

func (db *fakeDB) ListPizzas(_ context.Context, userID string, from, to time.Time) ([]domain.Pizza, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []domain.Pizza{}
	for _, p := range db.pizzas {
		if p.UserID == userID && !p.EatenAt.Before(from) && p.EatenAt.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (db *fakeDB) CountPizzas(_ context.Context, ids []string, from, to time.Time, ingredient string) (map[string]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := map[string]int{}
	for _, p := range db.pizzas {
		if !slices.Contains(ids, p.UserID) || p.EatenAt.Before(from) || !p.EatenAt.Before(to) {
			continue
		}
		if ingredient != "" && !slices.Contains(p.Ingredients, ingredient) {
			continue
		}
		out[p.UserID]++
	}
	return out, nil
}

func (db *fakeDB) SetYearlyCounter(_ context.Context, c domain.YearlyCounter) (domain.YearlyCounter, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.counters[c.UserID] == nil {
		db.counters[c.UserID] = map[int]int{}
	}
	db.counters[c.UserID][c.Year] = c.StartCount
	return c, nil
}

func (db *fakeDB) YearlyCounters(_ context.Context, ids []string, year int) (map[string]int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := map[string]int{}
	for _, id := range ids {
		if v, ok := db.counters[id][year]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// memBlobs records uploads in memory.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string]string
}

func (b *memBlobs) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string]string{}
	}
	b.objects[key] = string(data)
	return "/media/" + key, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

type testEnv struct {
	t       *testing.T
	db      *fakeDB
	blobs   *memBlobs
	cookies auth.SessionCookies
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newFakeDB()
	blobs := &memBlobs{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cookies := auth.SessionCookies{Codec: auth.NewCookieCodec([]byte("test-secret")), TTL: time.Hour}

	authSvc := &service.AuthService{Users: db, Sessions: db, SessionTTL: time.Hour, Logger: logger}
	groupsSvc := &service.GroupsService{Groups: db, Profiles: db, Logger: logger}
	friendsSvc := &service.FriendsService{Profiles: db, Friendships: db, Logger: logger}
	visibilitySvc := &service.VisibilityService{Friends: friendsSvc, Groups: groupsSvc, Decider: visibility.TableDecider{}}

	h := NewRouter(RouterOpts{
		Logger:     logger,
		Auth:       authSvc,
		Profiles:   &service.ProfileService{Store: db, Groups: groupsSvc},
		Friends:    friendsSvc,
		Groups:     groupsSvc,
		Visibility: visibilitySvc,
		Pizzas: &service.PizzaService{
			Pizzas:   db,
			Profiles: db,
			Gate:     visibilitySvc,
			Blobs:    blobs,
			Logger:   logger,
		},
		Leaderboards: &service.LeaderboardService{Friends: friendsSvc, Groups: groupsSvc, Profiles: db, Pizzas: db},
		Cookies:      cookies,
		Metrics:      NewMetrics(),
	})
	return &testEnv{t: t, db: db, blobs: blobs, cookies: cookies, handler: h}
}

// signUp creates a user directly in the fake and returns a bearer token.
func (e *testEnv) signUp(username string) (domain.User, string) {
	e.t.Helper()
	u, err := e.db.CreateUser(context.Background(), "", username, "")
	if err != nil {
		e.t.Fatalf("create user %s: %v", username, err)
	}
	sessID, err := e.db.CreateSession(context.Background(), u.ID, time.Now().Add(time.Hour), "", "")
	if err != nil {
		e.t.Fatalf("create session: %v", err)
	}
	return u, e.cookies.Codec.EncodeSessionID(sessID)
}

func (e *testEnv) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(method, path, token, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(method, path, token, r, "")
}
