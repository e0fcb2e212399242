// Package dto holds the JSON shapes of the notes API.
package dto

import (
	"time"

	"github.com/lovewall/love-wall/internal/web/notes/model"
)

// CreateNoteRequest is the body of POST /api/notes.
type CreateNoteRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

// NoteIDRequest is the body of the like and delete endpoints.
type NoteIDRequest struct {
	ID string `json:"id"`
}

// Note is a listed or created note.
type Note struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	ImageURL  string     `json:"imageUrl,omitempty"`
	Likes     int        `json:"likes"`
	LikedBy   []string   `json:"likedBy"`
	SenderIP  string     `json:"senderIp,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// LikeResult is returned by the like endpoints.
type LikeResult struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Likes    int      `json:"likes"`
	ImageURL string   `json:"imageUrl,omitempty"`
	LikedBy  []string `json:"likedBy"`
}

// DeleteResult is returned by DELETE /api/notes.
type DeleteResult struct {
	Success bool `json:"success"`
}

// WhoAmI carries the resolved caller identifier, null when unresolved.
type WhoAmI struct {
	ID *string `json:"id"`
}

func likedBy(n *model.Note) []string {
	if n.LikedBy == nil {
		return []string{}
	}
	return n.LikedBy
}

// NewNote converts a stored note.
func NewNote(n *model.Note) *Note {
	out := &Note{
		ID:       n.ID,
		Text:     n.Text,
		ImageURL: n.ImageURL,
		Likes:    n.Likes,
		LikedBy:  likedBy(n),
		SenderIP: n.SenderIP,
	}
	if !n.CreatedAt.IsZero() {
		createdAt := n.CreatedAt.UTC()
		out.CreatedAt = &createdAt
	}
	return out
}

// NewNotes converts a list of stored notes.
func NewNotes(notes []*model.Note) []*Note {
	out := make([]*Note, 0, len(notes))
	for _, n := range notes {
		out = append(out, NewNote(n))
	}
	return out
}

// NewLikeResult converts a note after a like.
func NewLikeResult(n *model.Note) *LikeResult {
	return &LikeResult{
		ID:       n.ID,
		Text:     n.Text,
		Likes:    n.Likes,
		ImageURL: n.ImageURL,
		LikedBy:  likedBy(n),
	}
}
