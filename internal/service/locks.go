package service

import (
	"hash/fnv"
	"sync"

	"collab-realtime/internal/domain"
)

const lockStripes = 64

// roomLocks serialises mutations per room id. Striped so the lock table stays
// bounded no matter how many room ids come and go; two rooms hashing to the
// same stripe serialise against each other, which is harmless.
type roomLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *roomLocks) index(roomID domain.RoomID) uint32 {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return h.Sum32() % lockStripes
}

// Lock acquires the stripe for roomID and returns its unlock function.
func (l *roomLocks) Lock(roomID domain.RoomID) func() {
	stripe := &l.stripes[l.index(roomID)]
	stripe.Lock()
	return stripe.Unlock
}

// LockTwo acquires the stripes for both room ids and returns one unlock
// function. Stripes are taken in index order so concurrent room switches
// cannot deadlock; ids sharing a stripe lock it once.
func (l *roomLocks) LockTwo(a, b domain.RoomID) func() {
	i, j := l.index(a), l.index(b)
	if i == j {
		l.stripes[i].Lock()
		return l.stripes[i].Unlock
	}
	if i > j {
		i, j = j, i
	}
	l.stripes[i].Lock()
	l.stripes[j].Lock()
	return func() {
		l.stripes[j].Unlock()
		l.stripes[i].Unlock()
	}
}
