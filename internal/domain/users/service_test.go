package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/eventplanner/internal/domain/accounts"
	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/validation"
)

type fakeRepo struct {
	mu    sync.Mutex
	users map[string]*User
	edges map[string]map[string]time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*User{}, edges: map[string]map[string]time.Time{}}
}

func (r *fakeRepo) add(u *User) *User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return u
}

func (r *fakeRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *fakeRepo) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *fakeRepo) SetActive(_ context.Context, id string, active bool) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.IsActive = active
	c := *u
	return &c, nil
}

func (r *fakeRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *fakeRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].LastLogin = &at
	return nil
}

func (r *fakeRepo) SetPasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id].Password = hash
	return nil
}

func (r *fakeRepo) List(_ context.Context, _ ListFilter, _, _ int) ([]*User, int, error) {
	return nil, 0, nil
}

func (r *fakeRepo) Search(_ context.Context, viewerID, query string, _, _ int) ([]*User, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*User
	for _, u := range r.users {
		if u.ID != viewerID && u.IsActive && strings.Contains(strings.ToLower(u.Name), strings.ToLower(query)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (r *fakeRepo) Suggest(_ context.Context, userID string, c SuggestionCriteria, limit int) ([]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*User
	for _, u := range r.users {
		if u.ID == userID || !u.IsActive {
			continue
		}
		if _, linked := r.edges[userID][u.ID]; linked {
			continue
		}
		if c.Empty() || (c.Company != "" && u.Company == c.Company) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeRepo) RecentlyActive(_ context.Context, excludeID string, limit int) ([]*User, error) {
	return nil, nil
}

func (r *fakeRepo) Connect(_ context.Context, a, b string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.edges[a][b]; ok {
		return ErrAlreadyConnected
	}
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if r.edges[pair[0]] == nil {
			r.edges[pair[0]] = map[string]time.Time{}
		}
		r.edges[pair[0]][pair[1]] = at
	}
	return nil
}

func (r *fakeRepo) Disconnect(_ context.Context, a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.edges[a], b)
	delete(r.edges[b], a)
	return nil
}

func (r *fakeRepo) Connections(_ context.Context, userID string) ([]Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Connection
	for other, since := range r.edges[userID] {
		out = append(out, Connection{User: r.users[other], Since: since})
	}
	return out, nil
}

func (r *fakeRepo) IsConnected(_ context.Context, a, b string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.edges[a][b]
	return ok, nil
}

func (r *fakeRepo) MutualConnections(_ context.Context, a, b string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for other := range r.edges[a] {
		if _, ok := r.edges[b][other]; ok {
			n++
		}
	}
	return n, nil
}

type fakeEvents struct {
	attending map[string][]*events.Event
	organized map[string][]*events.Event
}

func (f fakeEvents) ListAttending(_ context.Context, userID string) ([]*events.Event, error) {
	return f.attending[userID], nil
}

func (f fakeEvents) ListByOrganizer(_ context.Context, organizerID string) ([]*events.Event, error) {
	return f.organized[organizerID], nil
}

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, ev fakeEvents) *Service {
	svc := NewService(repo, ev, zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := accounts.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	return hash
}

func TestRegister(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, fakeEvents{})
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Ada@Example.com ", Password: "secret1", Name: "Ada"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("Email = %q, want lower-cased", u.Email)
	}
	if !u.IsActive {
		t.Error("new user should be active")
	}
	if !accounts.CheckPassword(u, "secret1") {
		t.Error("stored hash does not match password")
	}

	_, err = svc.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "secret1", Name: "Ada"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate Register() error = %v, want ErrEmailTaken", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newFakeRepo(), fakeEvents{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "nope", Password: "123", Name: "A"})

	errs, ok := validation.AsErrors(err)
	if !ok {
		t.Fatalf("expected validation errors, got %v", err)
	}
	if len(errs) != 3 {
		t.Errorf("got %d field errors, want 3: %v", len(errs), errs)
	}
}

func TestRegisterClosedSignup(t *testing.T) {
	svc := newTestService(newFakeRepo(), fakeEvents{}).
		WithSignupGate(func(context.Context) (bool, error) { return false, nil })

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "secret1", Name: "Ada"})

	if !errors.Is(err, ErrRegistrationDisabled) {
		t.Errorf("Register() error = %v, want ErrRegistrationDisabled", err)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeRepo()
	repo.add(&User{ID: "u1", Email: "ada@example.com", Name: "Ada", IsActive: true, Password: mustHash(t, "secret1")})
	repo.add(&User{ID: "u2", Email: "bob@example.com", Name: "Bob", IsActive: false, Password: mustHash(t, "secret1")})
	svc := newTestService(repo, fakeEvents{})
	ctx := context.Background()

	tests := []struct {
		name    string
		in      LoginInput
		wantErr error
	}{
		{"success", LoginInput{Email: "ADA@example.com", Password: "secret1"}, nil},
		{"padded email", LoginInput{Email: "  ada@example.com\t", Password: "secret1"}, nil},
		{"wrong password", LoginInput{Email: "ada@example.com", Password: "nope"}, ErrInvalidCredentials},
		{"unknown email", LoginInput{Email: "eve@example.com", Password: "secret1"}, ErrInvalidCredentials},
		{"inactive", LoginInput{Email: "bob@example.com", Password: "secret1"}, ErrInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := svc.Login(ctx, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if u.LastLogin == nil || !u.LastLogin.Equal(testNow) {
				t.Errorf("LastLogin = %v, want %v", u.LastLogin, testNow)
			}
		})
	}
}

func TestConnect(t *testing.T) {
	repo := newFakeRepo()
	repo.add(&User{ID: "a", Name: "Ada", IsActive: true})
	repo.add(&User{ID: "b", Name: "Bob", IsActive: true})
	svc := newTestService(repo, fakeEvents{})
	ctx := context.Background()

	if err := svc.Connect(ctx, "a", "a"); !errors.Is(err, ErrSelfConnection) {
		t.Errorf("self Connect() error = %v", err)
	}
	if err := svc.Connect(ctx, "a", "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown Connect() error = %v", err)
	}
	if err := svc.Connect(ctx, "a", "b"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := svc.Connect(ctx, "b", "a"); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("reverse Connect() error = %v, want ErrAlreadyConnected", err)
	}

	conns, _ := svc.Connections(ctx, "b")
	if len(conns) != 1 || conns[0].User.ID != "a" {
		t.Errorf("Connections(b) = %v, want [a]", conns)
	}

	if err := svc.Disconnect(ctx, "b", "a"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	conns, _ = svc.Connections(ctx, "a")
	if len(conns) != 0 {
		t.Errorf("Connections(a) after disconnect = %d, want 0", len(conns))
	}
}

func TestPublicProfile(t *testing.T) {
	repo := newFakeRepo()
	repo.add(&User{ID: "viewer", Name: "Viewer", IsActive: true})
	repo.add(&User{ID: "target", Name: "Target", Email: "target@example.com", IsActive: true})
	repo.add(&User{ID: "friend", Name: "Friend", IsActive: true})
	repo.add(&User{ID: "gone", Name: "Gone", IsActive: false})
	ctx := context.Background()
	_ = repo.Connect(ctx, "viewer", "friend", testNow)
	_ = repo.Connect(ctx, "target", "friend", testNow)
	_ = repo.Connect(ctx, "viewer", "target", testNow)

	ev := fakeEvents{organized: map[string][]*events.Event{
		"target": {{ID: "e1", Title: "Go Night", Status: events.StatusActive}},
	}}
	svc := newTestService(repo, ev)

	p, err := svc.PublicProfile(ctx, "viewer", "target")
	if err != nil {
		t.Fatalf("PublicProfile() error = %v", err)
	}
	if !p.IsConnected {
		t.Error("IsConnected = false, want true")
	}
	if p.MutualConnections != 1 {
		t.Errorf("MutualConnections = %d, want 1", p.MutualConnections)
	}
	if len(p.EventsOrganized) != 1 || p.EventsOrganized[0].Title != "Go Night" {
		t.Errorf("EventsOrganized = %v", p.EventsOrganized)
	}

	if _, err := svc.PublicProfile(ctx, "viewer", "gone"); !errors.Is(err, ErrProfileUnavailable) {
		t.Errorf("inactive PublicProfile() error = %v, want ErrProfileUnavailable", err)
	}
}

func TestProfileDerivesEventLists(t *testing.T) {
	repo := newFakeRepo()
	repo.add(&User{ID: "u1", Name: "Ada", IsActive: true})
	ev := fakeEvents{
		attending: map[string][]*events.Event{"u1": {{ID: "e1", Title: "Meetup"}, {ID: "e2", Title: "Workshop"}}},
		organized: map[string][]*events.Event{"u1": {{ID: "e3", Title: "Conference"}}},
	}
	svc := newTestService(repo, ev)

	p, err := svc.Profile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Profile() error = %v", err)
	}
	if len(p.EventsAttending) != 2 || len(p.EventsOrganized) != 1 {
		t.Errorf("attending=%d organized=%d, want 2 and 1", len(p.EventsAttending), len(p.EventsOrganized))
	}
}

func TestUpdateProfile(t *testing.T) {
	repo := newFakeRepo()
	repo.add(&User{ID: "u1", Name: "Ada", IsActive: true})
	svc := newTestService(repo, fakeEvents{})
	ctx := context.Background()

	long := strings.Repeat("x", 501)
	if _, err := svc.UpdateProfile(ctx, "u1", ProfileInput{Bio: &long}); err == nil {
		t.Error("expected bio length error")
	}

	bio := "Gopher"
	u, err := svc.UpdateProfile(ctx, "u1", ProfileInput{
		Bio:       &bio,
		Interests: []string{"go", " ", "kubernetes"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if u.Bio != "Gopher" || len(u.Interests) != 2 {
		t.Errorf("got bio=%q interests=%v", u.Bio, u.Interests)
	}
	if u.Name != "Ada" {
		t.Errorf("Name changed to %q", u.Name)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	svc := newTestService(newFakeRepo(), fakeEvents{})

	_, _, err := svc.Search(context.Background(), "u1", "", 10, 0)

	if _, ok := validation.AsErrors(err); !ok {
		t.Errorf("Search() error = %v, want validation error", err)
	}
}

func TestSuggestionsExcludeConnections(t *testing.T) {
	repo := newFakeRepo()
	repo.add(&User{ID: "me", Name: "Me", Company: "Acme", IsActive: true})
	repo.add(&User{ID: "colleague", Name: "Colleague", Company: "Acme", IsActive: true})
	repo.add(&User{ID: "friend", Name: "Friend", Company: "Acme", IsActive: true})
	repo.add(&User{ID: "stranger", Name: "Stranger", Company: "Other", IsActive: true})
	_ = repo.Connect(context.Background(), "me", "friend", testNow)
	svc := newTestService(repo, fakeEvents{})

	got, err := svc.Suggestions(context.Background(), "me")
	if err != nil {
		t.Fatalf("Suggestions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "colleague" {
		t.Errorf("Suggestions() = %v, want [colleague]", Cards(got))
	}
}
