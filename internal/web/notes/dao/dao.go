// Package dao contains the note stores.
package dao

import (
	"context"

	"github.com/lovewall/love-wall/internal/web/notes/model"
)

// Store persists notes.
//
// Missing notes, including ids the backend could never have issued,
// are reported as model.ErrNotFound. ToggleLike, LikeOnce and
// DeleteOwned each run as one atomic operation on a single note.
type Store interface {
	// List returns every note in the given order.
	List(ctx context.Context, order model.SortOrder) ([]*model.Note, error)
	// Insert assigns an id to note and saves it.
	Insert(ctx context.Context, note *model.Note) (*model.Note, error)
	Get(ctx context.Context, id string) (*model.Note, error)
	// ToggleLike adds callerID to the likers of the note, or removes it if
	// already present, and returns the updated note.
	ToggleLike(ctx context.Context, id, callerID string) (*model.Note, error)
	// LikeOnce adds callerID to the likers of the note, returning
	// model.ErrAlreadyLiked when it is already present.
	LikeOnce(ctx context.Context, id, callerID string) (*model.Note, error)
	// DeleteOwned removes the note only if its sender is ownerID,
	// otherwise it returns model.ErrForbidden or model.ErrNotFound.
	DeleteOwned(ctx context.Context, id, ownerID string) error
	Close(ctx context.Context) error
}
