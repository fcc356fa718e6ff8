package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-realtime/internal/domain"
	"collab-realtime/internal/infra/persistence/memory"
	"collab-realtime/internal/repository"
)

func newRoom(t *testing.T, roomType domain.RoomType, resourceID string) *domain.CollaborationRoom {
	t.Helper()
	room, err := domain.NewCollaborationRoom(roomType, resourceID, time.Now())
	require.NoError(t, err)
	room.PullEvents()
	return room
}

func TestRoomRepository_DeleteIfEmpty(t *testing.T) {
	repo := memory.NewRoomRepository()
	ctx := context.Background()
	now := time.Now()

	occupied := newRoom(t, domain.RoomTypeDashboard, "d1")
	occupied.AddParticipant(domain.RoomParticipant{SocketID: "s1", UserID: "u1", JoinedAt: now}, now)
	require.NoError(t, repo.Save(ctx, occupied))

	// Occupied rooms survive the conditional delete.
	deleted, err := repo.DeleteIfEmpty(ctx, occupied.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	_, err = repo.FindByID(ctx, occupied.ID)
	assert.NoError(t, err)

	empty := newRoom(t, domain.RoomTypeReport, "r1")
	require.NoError(t, repo.Save(ctx, empty))

	deleted, err = repo.DeleteIfEmpty(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = repo.FindByID(ctx, empty.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	// Unknown rooms report false, not an error.
	deleted, err = repo.DeleteIfEmpty(ctx, "dashboard:none")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRoomRepository_SaveAndFindReturnCopies(t *testing.T) {
	repo := memory.NewRoomRepository()
	ctx := context.Background()
	now := time.Now()

	room := newRoom(t, domain.RoomTypeWorkflow, "wf1")
	require.NoError(t, repo.Save(ctx, room))

	// Mutating the saved instance must not leak into the store.
	room.AddParticipant(domain.RoomParticipant{SocketID: "s1", UserID: "u1", JoinedAt: now}, now)

	stored, err := repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())

	// And mutating a fetched instance must not leak either.
	stored.AddParticipant(domain.RoomParticipant{SocketID: "s2", UserID: "u2", JoinedAt: now}, now)
	again, err := repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, again.IsEmpty())
}

func TestRoomRepository_TouchActivity_Monotonic(t *testing.T) {
	repo := memory.NewRoomRepository()
	ctx := context.Background()

	room := newRoom(t, domain.RoomTypeDashboard, "d1")
	require.NoError(t, repo.Save(ctx, room))

	later := room.LastActivityAt.Add(time.Minute)
	require.NoError(t, repo.TouchActivity(ctx, room.ID, later))

	stored, err := repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastActivityAt.Equal(later))

	// A stale timestamp must not rewind the activity clock.
	require.NoError(t, repo.TouchActivity(ctx, room.ID, later.Add(-time.Hour)))
	stored, err = repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastActivityAt.Equal(later))

	assert.True(t, errors.Is(repo.TouchActivity(ctx, "dashboard:none", later), repository.ErrNotFound))
}

func TestRoomRepository_DeleteOlderThan(t *testing.T) {
	repo := memory.NewRoomRepository()
	ctx := context.Background()

	stale, err := domain.NewCollaborationRoom(domain.RoomTypeAnalytics, "old", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, stale))

	fresh := newRoom(t, domain.RoomTypeAnalytics, "new")
	require.NoError(t, repo.Save(ctx, fresh))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = repo.FindByID(ctx, stale.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
	_, err = repo.FindByID(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestConnectionRepository_Lifecycle(t *testing.T) {
	repo := memory.NewConnectionRepository()
	ctx := context.Background()
	now := time.Now()

	info := domain.UserInfo{UserID: "u1", UserName: "Ann", UserEmail: "ann@example.com", OrganizationID: "org1"}
	conn := domain.NewSocketConnection("s1", info, now)
	conn.PullEvents()
	require.NoError(t, repo.Save(ctx, conn))

	found, err := repo.FindBySocketID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", found.UserID)

	byUser, err := repo.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	count, err := repo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.FindBySocketID(ctx, "s1")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	// Deleting an absent record stays a no-op.
	assert.NoError(t, repo.Delete(ctx, "s1"))
}
