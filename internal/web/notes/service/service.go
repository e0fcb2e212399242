// Package service implements the note rules on top of a dao.Store.
package service

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gutils "github.com/Laisky/go-utils/v6"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"

	"github.com/lovewall/love-wall/internal/web/notes/dao"
	"github.com/lovewall/love-wall/internal/web/notes/model"
	"github.com/lovewall/love-wall/library/log"
)

// Clock provides the current time in UTC.
type Clock func() time.Time

// Settings tunes the service.
type Settings struct {
	// MaxTextLength caps note text in runes. Zero means no limit.
	MaxTextLength int
}

// Service lists, creates, likes and deletes notes.
type Service struct {
	store    dao.Store
	logger   logSDK.Logger
	clock    Clock
	settings Settings
}

// CreateInput is the payload of Create.
type CreateInput struct {
	Text     string
	ImageURL string
	// CallerID is empty when the creator could not be identified.
	CallerID string
}

// NewService constructs a Service backed by store.
func NewService(store dao.Store, logger logSDK.Logger, clock Clock, settings Settings) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = log.Logger.Named("notes_service")
	}
	if clock == nil {
		clock = gutils.Clock.GetUTCNow
	}
	if settings.MaxTextLength < 0 {
		return nil, errors.Errorf("max text length must not be negative, got %d", settings.MaxTextLength)
	}

	return &Service{
		store:    store,
		logger:   logger,
		clock:    clock,
		settings: settings,
	}, nil
}

// List returns every note in the requested order.
func (s *Service) List(ctx context.Context, order model.SortOrder) ([]*model.Note, error) {
	if order != model.SortPopular {
		order = model.SortRecent
	}

	notes, err := s.store.List(ctx, order)
	if err != nil {
		return nil, model.Unavailable(errors.Wrap(err, "list notes"))
	}
	return notes, nil
}

// Create validates input and stores a new note with no likes.
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Note, error) {
	text, err := sanitizeText(input.Text, s.settings.MaxTextLength)
	if err != nil {
		return nil, err
	}
	imageURL, err := sanitizeImageURL(input.ImageURL)
	if err != nil {
		return nil, err
	}

	note, err := s.store.Insert(ctx, &model.Note{
		Text:      text,
		ImageURL:  imageURL,
		LikedBy:   []string{},
		SenderIP:  input.CallerID,
		CreatedAt: s.clock().UTC(),
	})
	if err != nil {
		return nil, model.Unavailable(errors.Wrap(err, "create note"))
	}

	s.logger.Debug("note created",
		zap.String("id", note.ID),
		zap.Bool("with_image", note.ImageURL != ""),
		zap.Bool("has_sender", note.SenderIP != ""))
	return note, nil
}

// checkMutation validates the caller and id shared by every mutating operation.
func checkMutation(id, callerID string) (string, error) {
	if callerID == "" {
		return "", errors.Wrap(model.ErrUnauthorized, "caller identifier unresolved")
	}
	return sanitizeID(id)
}

// ToggleLike flips whether callerID likes the note and returns the updated note.
func (s *Service) ToggleLike(ctx context.Context, id, callerID string) (*model.Note, error) {
	id, err := checkMutation(id, callerID)
	if err != nil {
		return nil, err
	}

	note, err := s.store.ToggleLike(ctx, id, callerID)
	if err != nil {
		return nil, model.Unavailable(errors.Wrap(err, "toggle like"))
	}
	return note, nil
}

// LikeOnce likes the note for callerID and fails with model.ErrAlreadyLiked
// on a repeat.
//
// Deprecated: use ToggleLike. Kept for clients built against the one-way like.
func (s *Service) LikeOnce(ctx context.Context, id, callerID string) (*model.Note, error) {
	id, err := checkMutation(id, callerID)
	if err != nil {
		return nil, err
	}

	note, err := s.store.LikeOnce(ctx, id, callerID)
	if err != nil {
		return nil, model.Unavailable(errors.Wrap(err, "like once"))
	}
	return note, nil
}

// Delete removes the note if callerID created it.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	id, err := checkMutation(id, callerID)
	if err != nil {
		return err
	}

	if err = s.store.DeleteOwned(ctx, id, callerID); err != nil {
		return model.Unavailable(errors.Wrap(err, "delete note"))
	}

	s.logger.Info("note deleted", zap.String("id", id))
	return nil
}
