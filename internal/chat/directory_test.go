package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/agrichat/internal/identity"
)

// fakeAPI is an in-memory stand-in for the marketplace service.
type fakeAPI struct {
	mu       sync.Mutex
	users    map[string]identity.User
	allUsers []identity.User
	chatList []string
	listErr  error
	addErr   error
}

func newFakeAPI(users ...identity.User) *fakeAPI {
	f := &fakeAPI{users: make(map[string]identity.User)}
	for _, u := range users {
		f.users[u.ID] = u
		f.allUsers = append(f.allUsers, u)
	}
	return f
}

func (f *fakeAPI) ChatList(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.chatList...), nil
}

func (f *fakeAPI) Profile(ctx context.Context, id string) (identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return identity.User{}, errors.New("profile not found: " + id)
	}
	return u, nil
}

func (f *fakeAPI) Users(ctx context.Context) ([]identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]identity.User(nil), f.allUsers...), nil
}

func (f *fakeAPI) AddConversation(ctx context.Context, counterpartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	// The real service is not idempotent; it appends blindly.
	f.chatList = append(f.chatList, counterpartID)
	return nil
}

var (
	self    = identity.User{ID: "u1", Name: "Bola", Role: identity.RoleBuyer}
	femi    = identity.User{ID: "u2", Name: "Femi", Role: identity.RoleFarmer}
	ada     = identity.User{ID: "u3", Name: "Ada", Role: identity.RoleFarmer}
	otherBu = identity.User{ID: "u4", Name: "Tunde", Role: identity.RoleBuyer}
)

func TestListResolvesProfilesInOrder(t *testing.T) {
	api := newFakeAPI(self, femi, ada)
	api.chatList = []string{"u3", "u2"}
	d := NewDirectory(api, self)

	convs, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "u3", convs[0].Counterpart.ID)
	assert.Equal(t, "u2", convs[1].Counterpart.ID)
}

func TestListCollapsesDuplicateIDs(t *testing.T) {
	api := newFakeAPI(self, femi)
	api.chatList = []string{"u2", "u2"}
	d := NewDirectory(api, self)

	convs, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
}

func TestListFailureKeepsPreviousCache(t *testing.T) {
	api := newFakeAPI(self, femi)
	api.chatList = []string{"u2"}
	d := NewDirectory(api, self)

	_, err := d.List(context.Background())
	require.NoError(t, err)

	api.mu.Lock()
	api.listErr = errors.New("network down")
	api.mu.Unlock()

	_, err = d.List(context.Background())
	require.Error(t, err)
	assert.Len(t, d.Conversations(), 1, "stale-but-real beats silently empty")
}

func TestStartConversationShowsUpInList(t *testing.T) {
	api := newFakeAPI(self, femi)
	d := NewDirectory(api, self)

	require.NoError(t, d.StartConversation(context.Background(), femi))

	convs := d.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "u2", convs[0].Counterpart.ID)
}

func TestStartConversationTwiceDoesNotDuplicate(t *testing.T) {
	api := newFakeAPI(self, femi)
	d := NewDirectory(api, self)

	require.NoError(t, d.StartConversation(context.Background(), femi))
	require.NoError(t, d.StartConversation(context.Background(), femi))

	assert.Len(t, d.Conversations(), 1)
}

func TestStartConversationPartialFailureIsDistinct(t *testing.T) {
	api := newFakeAPI(self, femi)
	d := NewDirectory(api, self)

	api.mu.Lock()
	api.listErr = errors.New("refresh failed")
	api.mu.Unlock()

	err := d.StartConversation(context.Background(), femi)
	require.Error(t, err)

	var stale *StaleListError
	require.ErrorAs(t, err, &stale, "partial failure must be distinguishable")
	assert.Equal(t, "u2", stale.Counterpart.ID)
}

func TestStartConversationTotalFailure(t *testing.T) {
	api := newFakeAPI(self, femi)
	api.addErr = errors.New("service down")
	d := NewDirectory(api, self)

	err := d.StartConversation(context.Background(), femi)
	require.Error(t, err)

	var stale *StaleListError
	assert.False(t, errors.As(err, &stale), "total failure is not a stale-list failure")
}

func TestCandidatesFilter(t *testing.T) {
	api := newFakeAPI(self, femi, ada, otherBu)
	api.chatList = []string{"u2"}
	d := NewDirectory(api, self)

	_, err := d.List(context.Background())
	require.NoError(t, err)

	candidates, err := d.Candidates(context.Background())
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "u3", candidates[0].ID, "only the farmer not yet in the directory")
}
