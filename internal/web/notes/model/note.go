// Package model defines the note record shared by every store backend.
package model

import (
	"strings"
	"time"
)

// Note is one anonymous message on the wall.
type Note struct {
	ID       string
	Text     string
	ImageURL string
	// Likes always equals len(LikedBy).
	Likes   int
	LikedBy []string
	// SenderIP is empty when the creator could not be identified,
	// such a note can never be deleted.
	SenderIP  string
	CreatedAt time.Time
}

// HasLiked reports whether callerID is in LikedBy.
func (n *Note) HasLiked(callerID string) bool {
	for _, v := range n.LikedBy {
		if v == callerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of n.
func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	cp := *n
	cp.LikedBy = append(make([]string, 0, len(n.LikedBy)), n.LikedBy...)
	return &cp
}

// SortOrder selects the list ordering.
type SortOrder string

const (
	// SortRecent lists newest notes first.
	SortRecent SortOrder = "recent"
	// SortPopular lists most liked notes first, ties newest first.
	SortPopular SortOrder = "popular"
)

// ParseSortOrder maps a query value to a SortOrder.
// Anything unrecognised falls back to SortRecent.
func ParseSortOrder(v string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(v), string(SortPopular)) {
		return SortPopular
	}
	return SortRecent
}
