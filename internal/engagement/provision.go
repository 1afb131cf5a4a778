package engagement

import (
	"context"
	"errors"
	"fmt"
)

// GetOrCreateRoom returns the single conversation room for key, creating it
// lazily on first use.
//
// The read-then-insert gap is arbitrated by the store's uniqueness constraint
// on the key fields: when two callers race, exactly one insert wins and the
// loser re-reads the winner's row. Every provisioning call site must go
// through this function — an unconditional insert anywhere else would
// reintroduce the duplicate-room race.
func GetOrCreateRoom(ctx context.Context, store Store, key RoomKey, jobID *string) (*Room, error) {
	room, err := store.FindRoom(ctx, key)
	if err == nil {
		return room, nil // common path on repeated calls
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find room: %w", err)
	}

	room, err = store.InsertRoom(ctx, key, jobID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, ErrRoomExists) {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	// A concurrent caller won the insert race; their row is canonical.
	room, err = store.FindRoom(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("re-read room after conflict: %w", err)
	}
	return room, nil
}
