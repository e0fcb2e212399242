package dao

import (
	"context"
	"sort"
	"sync"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	"github.com/google/uuid"

	"github.com/lovewall/love-wall/internal/web/notes/model"
)

type memoryEntry struct {
	note *model.Note
	seq  uint64
}

// Memory is a process-local store for development and tests.
// Notes are lost when the process exits.
type Memory struct {
	mu    sync.Mutex
	seq   uint64
	notes map[string]*memoryEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{notes: map[string]*memoryEntry{}}
}

// newNoteID returns a time ordered UUIDv7.
func newNoteID() string {
	return gutils.UUID7()
}

// validNoteID reports whether id could have been issued by newNoteID.
func validNoteID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (m *Memory) lookup(id string) (*memoryEntry, error) {
	if !validNoteID(id) {
		return nil, errors.Wrapf(model.ErrNotFound, "malformed note id %q", id)
	}
	ent, ok := m.notes[id]
	if !ok {
		return nil, errors.Wrapf(model.ErrNotFound, "note %q", id)
	}
	return ent, nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, order model.SortOrder) ([]*model.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "list notes")
	}

	m.mu.Lock()
	entries := make([]*memoryEntry, 0, len(m.notes))
	for _, ent := range m.notes {
		entries = append(entries, &memoryEntry{note: ent.note.Clone(), seq: ent.seq})
	}
	m.mu.Unlock()

	sortEntries(entries, order, func(e *memoryEntry) (int, uint64) {
		return e.note.Likes, e.seq
	})

	notes := make([]*model.Note, 0, len(entries))
	for _, ent := range entries {
		notes = append(notes, ent.note)
	}
	return notes, nil
}

// sortEntries orders newest first, or by likes then newest for SortPopular.
func sortEntries[T any](items []T, order model.SortOrder, key func(T) (likes int, seq uint64)) {
	sort.SliceStable(items, func(i, j int) bool {
		li, si := key(items[i])
		lj, sj := key(items[j])
		if order == model.SortPopular && li != lj {
			return li > lj
		}
		return si > sj
	})
}

// Insert implements Store.
func (m *Memory) Insert(ctx context.Context, note *model.Note) (*model.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "insert note")
	}

	stored := note.Clone()
	stored.ID = newNoteID()
	stored.Likes = 0
	stored.LikedBy = []string{}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.notes[stored.ID] = &memoryEntry{note: stored, seq: m.seq}

	return stored.Clone(), nil
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, id string) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return ent.note.Clone(), nil
}

// ToggleLike implements Store.
func (m *Memory) ToggleLike(ctx context.Context, id, callerID string) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	n := ent.note
	if n.HasLiked(callerID) {
		kept := n.LikedBy[:0]
		for _, v := range n.LikedBy {
			if v != callerID {
				kept = append(kept, v)
			}
		}
		n.LikedBy = kept
	} else {
		n.LikedBy = append(n.LikedBy, callerID)
	}
	n.Likes = len(n.LikedBy)

	return n.Clone(), nil
}

// LikeOnce implements Store.
func (m *Memory) LikeOnce(ctx context.Context, id, callerID string) (*model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	n := ent.note
	if n.HasLiked(callerID) {
		return nil, errors.Wrapf(model.ErrAlreadyLiked, "note %q", id)
	}
	n.LikedBy = append(n.LikedBy, callerID)
	n.Likes = len(n.LikedBy)

	return n.Clone(), nil
}

// DeleteOwned implements Store.
func (m *Memory) DeleteOwned(ctx context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, err := m.lookup(id)
	if err != nil {
		return err
	}
	if ent.note.SenderIP == "" || ent.note.SenderIP != ownerID {
		return errors.Wrapf(model.ErrForbidden, "note %q", id)
	}

	delete(m.notes, id)
	return nil
}

// Close implements Store.
func (m *Memory) Close(context.Context) error {
	return nil
}
