package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Togather-Foundation/eventplanner/internal/domain/events"
	"github.com/Togather-Foundation/eventplanner/internal/domain/users"
)

type seedFakes struct {
	byEmail     map[string]*users.User
	events      []string
	connections [][2]string
	connectErr  error
}

func newSeedFakes(existing ...string) *seedFakes {
	f := &seedFakes{byEmail: map[string]*users.User{}}
	for _, email := range existing {
		f.byEmail[email] = &users.User{ID: "existing-" + email, Email: email}
	}
	return f
}

func (f *seedFakes) Register(_ context.Context, in users.RegisterInput) (*users.User, error) {
	if _, ok := f.byEmail[in.Email]; ok {
		return nil, users.ErrEmailTaken
	}
	u := &users.User{ID: fmt.Sprintf("user-%d", len(f.byEmail)+1), Email: in.Email, Name: in.Name}
	f.byEmail[in.Email] = u
	return u, nil
}

func (f *seedFakes) GetByEmail(_ context.Context, email string) (*users.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, users.ErrUserNotFound
}

func (f *seedFakes) Create(_ context.Context, organizerID string, in events.CreateInput) (*events.Event, error) {
	f.events = append(f.events, organizerID+":"+in.Title)
	return &events.Event{ID: "event", OrganizerID: organizerID, Title: in.Title}, nil
}

func (f *seedFakes) Connect(_ context.Context, userID, targetID string) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connections = append(f.connections, [2]string{userID, targetID})
	return nil
}

func (f *seedFakes) targets() seedTargets {
	return seedTargets{Users: f, Lookup: f, Events: f, Connects: f}
}

func TestReadSeedFile(t *testing.T) {
	data, err := readSeedFile("testdata/seed.yaml")
	require.NoError(t, err)

	require.Len(t, data.Users, 2)
	assert.Equal(t, "Engineer", data.Users[0].JobTitle)
	require.Len(t, data.Events, 1)
	assert.Equal(t, "ada@example.com", data.Events[0].Organizer)
	assert.Equal(t, "Go Meetup", data.Events[0].Title)
	assert.Equal(t, "Toronto", data.Events[0].Location.City)
	require.NotNil(t, data.Events[0].Price)
	assert.Equal(t, 0.0, *data.Events[0].Price)
	assert.Equal(t, [][2]string{{"ada@example.com", "grace@example.com"}}, data.Connections)
}

func TestReadSeedFileRejectsUnknownKeys(t *testing.T) {
	path := t.TempDir() + "/bad.yaml"
	require.NoError(t, os.WriteFile(path, []byte("attendees:\n  - nobody\n"), 0o600))

	_, err := readSeedFile(path)
	assert.Error(t, err)
}

func TestApplySeed(t *testing.T) {
	data, err := readSeedFile("testdata/seed.yaml")
	require.NoError(t, err)
	fakes := newSeedFakes("grace@example.com")

	report, err := applySeed(context.Background(), data, fakes.targets())
	require.NoError(t, err)

	assert.Equal(t, seedReport{UsersCreated: 1, UsersReused: 1, EventsCreated: 1, Connections: 1}, report)
	ada := fakes.byEmail["ada@example.com"].ID
	assert.Equal(t, []string{ada + ":Go Meetup"}, fakes.events)
	assert.Equal(t, [][2]string{{ada, "existing-grace@example.com"}}, fakes.connections)
}

func TestApplySeedIsRepeatable(t *testing.T) {
	data, err := readSeedFile("testdata/seed.yaml")
	require.NoError(t, err)
	fakes := newSeedFakes()

	_, err = applySeed(context.Background(), data, fakes.targets())
	require.NoError(t, err)

	fakes.connectErr = users.ErrAlreadyConnected
	report, err := applySeed(context.Background(), data, fakes.targets())
	require.NoError(t, err)
	assert.Equal(t, 2, report.UsersReused)
	assert.Equal(t, 1, report.Connections)
}

func TestApplySeedUnknownOrganizer(t *testing.T) {
	data := seedFile{Events: []seedEvent{{Organizer: "ghost@example.com"}}}

	_, err := applySeed(context.Background(), data, newSeedFakes().targets())
	require.Error(t, err)
	assert.True(t, errors.Is(err, users.ErrUserNotFound))
}

func TestApplySeedConnectFailure(t *testing.T) {
	fakes := newSeedFakes("a@example.com", "b@example.com")
	fakes.connectErr = users.ErrSelfConnection
	data := seedFile{Connections: [][2]string{{"a@example.com", "b@example.com"}}}

	_, err := applySeed(context.Background(), data, fakes.targets())
	assert.ErrorIs(t, err, users.ErrSelfConnection)
}
