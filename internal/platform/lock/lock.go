// Package lock provides keyed mutual exclusion for bed allocation. A single
// instance uses LocalLocker; several instances sharing one database use
// RedisLocker so that bed critical sections hold across processes.
package lock

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when the locks could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires every key or none. Keys are taken in ascending order so that
// two callers locking overlapping sets cannot deadlock. The returned release
// func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

func BedKey(id uuid.UUID) string {
	return "bed:" + id.String()
}

func PatientKey(id uuid.UUID) string {
	return "patient:" + id.String()
}

// normalize sorts keys and drops duplicates and empty strings.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
