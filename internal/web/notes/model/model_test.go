package model

import (
	"context"
	"testing"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
)

func TestParseSortOrder(t *testing.T) {
	require.Equal(t, SortPopular, ParseSortOrder("popular"))
	require.Equal(t, SortPopular, ParseSortOrder(" Popular "))
	require.Equal(t, SortRecent, ParseSortOrder("recent"))
	require.Equal(t, SortRecent, ParseSortOrder(""))
	require.Equal(t, SortRecent, ParseSortOrder("oldest"))
}

func TestNoteClone(t *testing.T) {
	n := &Note{ID: "1", LikedBy: []string{"a"}, Likes: 1}
	cp := n.Clone()
	cp.LikedBy[0] = "b"
	require.Equal(t, "a", n.LikedBy[0])
	require.True(t, n.HasLiked("a"))
	require.False(t, n.HasLiked("b"))

	var nilNote *Note
	require.Nil(t, nilNote.Clone())
}

// TestUnavailable verifies that store failures match ErrUnavailable and keep their cause.
func TestUnavailable(t *testing.T) {
	require.NoError(t, Unavailable(nil))

	err := Unavailable(errors.Wrap(context.DeadlineExceeded, "find notes"))
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	notFound := errors.Wrap(ErrNotFound, "toggle like")
	require.Equal(t, notFound, Unavailable(notFound))
	require.False(t, errors.Is(Unavailable(notFound), ErrUnavailable))
}
