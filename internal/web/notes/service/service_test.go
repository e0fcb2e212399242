package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"

	"github.com/lovewall/love-wall/internal/web/notes/dao"
	"github.com/lovewall/love-wall/internal/web/notes/model"
)

var fixedNow = time.Date(2024, 2, 14, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, dao.Store) {
	t.Helper()

	store := dao.NewMemory()
	svc, err := NewService(store, nil, func() time.Time { return fixedNow }, Settings{})
	require.NoError(t, err)
	return svc, store
}

// brokenStore fails every call as an unreachable database would.
type brokenStore struct {
	dao.Store
}

var errDown = errors.New("connection refused")

func (brokenStore) List(context.Context, model.SortOrder) ([]*model.Note, error) {
	return nil, errDown
}

func (brokenStore) Insert(context.Context, *model.Note) (*model.Note, error) {
	return nil, errDown
}

func (brokenStore) ToggleLike(context.Context, string, string) (*model.Note, error) {
	return nil, errDown
}

func (brokenStore) DeleteOwned(context.Context, string, string) error {
	return errDown
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil, nil, nil, Settings{})
	require.Error(t, err)

	_, err = NewService(dao.NewMemory(), nil, nil, Settings{MaxTextLength: -1})
	require.Error(t, err)

	svc, err := NewService(dao.NewMemory(), nil, nil, Settings{})
	require.NoError(t, err)
	require.Zero(t, svc.settings.MaxTextLength)
}

// TestCreateThenListRecent verifies a new note is listed first.
func TestCreateThenListRecent(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, CreateInput{Text: "older"})
	require.NoError(t, err)
	created, err := svc.Create(ctx, CreateInput{
		Text:     "  hi  ",
		ImageURL: " https://i.imgur.com/abc.png ",
		CallerID: "1.2.3.4",
	})
	require.NoError(t, err)
	require.Equal(t, "hi", created.Text)
	require.Equal(t, "https://i.imgur.com/abc.png", created.ImageURL)
	require.Equal(t, "1.2.3.4", created.SenderIP)
	require.Equal(t, 0, created.Likes)
	require.Empty(t, created.LikedBy)
	require.Equal(t, fixedNow, created.CreatedAt)

	notes, err := svc.List(ctx, model.SortRecent)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	require.Equal(t, created.ID, notes[0].ID)

	// unknown orders fall back to recent
	notes, err = svc.List(ctx, model.SortOrder("oldest"))
	require.NoError(t, err)
	require.Equal(t, created.ID, notes[0].ID)
}

// TestCreateRejectsInvalidInput verifies nothing is stored for bad input.
func TestCreateRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	cases := map[string]CreateInput{
		"blank text":       {Text: "   \n\t"},
		"null byte":        {Text: "a\x00b"},
		"null byte in url": {Text: "hi", ImageURL: "https://x.io/\x00"},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, input)
			require.ErrorIs(t, err, model.ErrInvalidInput)
		})
	}

	notes, err := store.List(ctx, model.SortRecent)
	require.NoError(t, err)
	require.Empty(t, notes)
}

// TestCreateStoresAnyImageURL verifies long text and arbitrary image links
// are kept verbatim when no length cap is configured.
func TestCreateStoresAnyImageURL(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	long := strings.Repeat("爱", 1001)
	for _, imageURL := range []string{
		"/uploads/a.png",
		"data:image/png;base64,AAAA",
		"https://x.io/" + strings.Repeat("a", 4096),
	} {
		created, err := svc.Create(ctx, CreateInput{Text: long, ImageURL: " " + imageURL + " "})
		require.NoError(t, err)
		require.Equal(t, imageURL, created.ImageURL)

		notes, err := svc.List(ctx, model.SortRecent)
		require.NoError(t, err)
		require.Equal(t, created.ID, notes[0].ID)
		require.Equal(t, long, notes[0].Text)
	}
}

func TestCreateTextLimit(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(dao.NewMemory(), nil, nil, Settings{MaxTextLength: 5})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Text: strings.Repeat("爱", 6)})
	require.ErrorIs(t, err, model.ErrInvalidInput)

	// exactly at the limit is fine
	_, err = svc.Create(ctx, CreateInput{Text: strings.Repeat("爱", 5)})
	require.NoError(t, err)
}

func TestCreateWithoutCaller(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	note, err := svc.Create(ctx, CreateInput{Text: "anonymous"})
	require.NoError(t, err)
	require.Empty(t, note.SenderIP)
	require.Empty(t, note.ImageURL)

	// nobody can delete a note without a sender
	require.ErrorIs(t, svc.Delete(ctx, note.ID, "1.2.3.4"), model.ErrForbidden)
}

// TestToggleLikeRoundTrip verifies toggling twice restores the note.
func TestToggleLikeRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	note, err := svc.Create(ctx, CreateInput{Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, 0, note.Likes)
	require.Empty(t, note.LikedBy)

	liked, err := svc.ToggleLike(ctx, note.ID, "1.2.3.4")
	require.NoError(t, err)
	require.Equal(t, 1, liked.Likes)
	require.Equal(t, []string{"1.2.3.4"}, liked.LikedBy)

	unliked, err := svc.ToggleLike(ctx, note.ID, "1.2.3.4")
	require.NoError(t, err)
	require.Equal(t, 0, unliked.Likes)
	require.Empty(t, unliked.LikedBy)
}

// TestToggleLikeCountMatchesLikers verifies likes equals len(likedBy) after mixed toggles.
func TestToggleLikeCountMatchesLikers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	note, err := svc.Create(ctx, CreateInput{Text: "hi"})
	require.NoError(t, err)

	for _, caller := range []string{"a", "b", "a", "c", "b", "d", "a"} {
		got, err := svc.ToggleLike(ctx, note.ID, caller)
		require.NoError(t, err)
		require.Len(t, got.LikedBy, got.Likes)
	}

	notes, err := svc.List(ctx, model.SortRecent)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "c", "d"}, notes[0].LikedBy)
}

func TestToggleLikeErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	note, err := svc.Create(ctx, CreateInput{Text: "hi"})
	require.NoError(t, err)

	_, err = svc.ToggleLike(ctx, note.ID, "")
	require.ErrorIs(t, err, model.ErrUnauthorized)
	_, err = svc.ToggleLike(ctx, "  ", "1.2.3.4")
	require.ErrorIs(t, err, model.ErrInvalidInput)
	_, err = svc.ToggleLike(ctx, "missing", "1.2.3.4")
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestLikeOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	note, err := svc.Create(ctx, CreateInput{Text: "hi"})
	require.NoError(t, err)

	liked, err := svc.LikeOnce(ctx, note.ID, "1.2.3.4")
	require.NoError(t, err)
	require.Equal(t, 1, liked.Likes)

	_, err = svc.LikeOnce(ctx, note.ID, "1.2.3.4")
	require.ErrorIs(t, err, model.ErrAlreadyLiked)

	_, err = svc.LikeOnce(ctx, note.ID, "")
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

// TestDeleteOwnership verifies a non-owner cannot delete and the owner can.
func TestDeleteOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	note, err := svc.Create(ctx, CreateInput{Text: "mine", CallerID: "1.1.1.1"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, note.ID, ""), model.ErrUnauthorized)
	require.ErrorIs(t, svc.Delete(ctx, "", "1.1.1.1"), model.ErrInvalidInput)
	require.ErrorIs(t, svc.Delete(ctx, note.ID, "2.2.2.2"), model.ErrForbidden)

	notes, err := svc.List(ctx, model.SortRecent)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, "mine", notes[0].Text)

	require.NoError(t, svc.Delete(ctx, note.ID, "1.1.1.1"))
	notes, err = svc.List(ctx, model.SortRecent)
	require.NoError(t, err)
	require.Empty(t, notes)

	require.ErrorIs(t, svc.Delete(ctx, note.ID, "1.1.1.1"), model.ErrNotFound)
}

// TestPopularOrder verifies popular listing has non-increasing likes.
func TestPopularOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	likes := []int{1, 3, 0, 3, 2}
	ids := make([]string, len(likes))
	for i, n := range likes {
		note, err := svc.Create(ctx, CreateInput{Text: "note"})
		require.NoError(t, err)
		ids[i] = note.ID
		for j := 0; j < n; j++ {
			_, err = svc.ToggleLike(ctx, note.ID, strings.Repeat("x", j+1))
			require.NoError(t, err)
		}
	}

	notes, err := svc.List(ctx, model.SortPopular)
	require.NoError(t, err)
	require.Len(t, notes, len(likes))
	for i := 1; i < len(notes); i++ {
		require.LessOrEqual(t, notes[i].Likes, notes[i-1].Likes)
	}
	// tie on 3 likes goes to the newer note
	require.Equal(t, ids[3], notes[0].ID)
	require.Equal(t, ids[1], notes[1].ID)
}

// TestStoreFailureIsUnavailable verifies store errors surface as ErrUnavailable.
func TestStoreFailureIsUnavailable(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(brokenStore{}, nil, nil, Settings{})
	require.NoError(t, err)

	_, err = svc.List(ctx, model.SortRecent)
	require.ErrorIs(t, err, model.ErrUnavailable)
	require.ErrorIs(t, err, errDown)

	_, err = svc.Create(ctx, CreateInput{Text: "hi"})
	require.ErrorIs(t, err, model.ErrUnavailable)

	_, err = svc.ToggleLike(ctx, "id", "1.2.3.4")
	require.ErrorIs(t, err, model.ErrUnavailable)

	require.ErrorIs(t, svc.Delete(ctx, "id", "1.2.3.4"), model.ErrUnavailable)
}
