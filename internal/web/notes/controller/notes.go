// Package controller exposes the notes service over HTTP.
package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	gmw "github.com/Laisky/gin-middlewares/v7"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/lovewall/love-wall/internal/web/notes/dto"
	"github.com/lovewall/love-wall/internal/web/notes/identity"
	"github.com/lovewall/love-wall/internal/web/notes/model"
	"github.com/lovewall/love-wall/internal/web/notes/service"
	"github.com/lovewall/love-wall/library/log"
)

// DefaultRequestTimeout bounds each store call when not configured.
const DefaultRequestTimeout = 10 * time.Second

// Notes serves /api/notes.
type Notes struct {
	svc      *service.Service
	resolver identity.Resolver
	timeout  time.Duration
}

// New returns the notes controller.
func New(svc *service.Service, resolver identity.Resolver, timeout time.Duration) (*Notes, error) {
	if svc == nil {
		return nil, errors.New("notes service is required")
	}
	if resolver == nil {
		return nil, errors.New("identity resolver is required")
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Notes{svc: svc, resolver: resolver, timeout: timeout}, nil
}

// RegisterRoutes mounts the notes endpoints on r.
func (c *Notes) RegisterRoutes(r gin.IRouter) {
	grp := r.Group("/api/notes")
	grp.GET("", c.List)
	grp.POST("", c.Create)
	grp.PATCH("", c.ToggleLike)
	grp.DELETE("", c.Delete)
	grp.PATCH("/like", c.LikeOnce)
	grp.GET("/whoami", c.WhoAmI)
}

// List handles GET /api/notes?sort=recent|popular.
func (c *Notes) List(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	notes, err := c.svc.List(reqCtx, model.ParseSortOrder(ctx.Query("sort")))
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewNotes(notes))
}

// Create handles POST /api/notes.
func (c *Notes) Create(ctx *gin.Context) {
	req := new(dto.CreateNoteRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		writeError(ctx, errors.Wrap(model.ErrInvalidInput, "invalid note"))
		return
	}

	callerID, _ := c.resolver.Resolve(ctx.Request)

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	note, err := c.svc.Create(reqCtx, service.CreateInput{
		Text:     req.Text,
		ImageURL: req.ImageURL,
		CallerID: callerID,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewNote(note))
}

// ToggleLike handles PATCH /api/notes.
func (c *Notes) ToggleLike(ctx *gin.Context) {
	c.like(ctx, c.svc.ToggleLike)
}

// LikeOnce handles the deprecated PATCH /api/notes/like.
func (c *Notes) LikeOnce(ctx *gin.Context) {
	ctx.Header("Deprecation", "true")
	c.like(ctx, c.svc.LikeOnce)
}

func (c *Notes) like(ctx *gin.Context,
	apply func(ctx context.Context, id, callerID string) (*model.Note, error)) {
	callerID, ok := c.resolver.Resolve(ctx.Request)
	if !ok {
		writeError(ctx, errors.Wrap(model.ErrUnauthorized, "cannot identify caller"))
		return
	}

	req := new(dto.NoteIDRequest)
	if err := ctx.ShouldBindJSON(req); err != nil {
		writeError(ctx, errors.Wrap(model.ErrInvalidInput, "missing id"))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	note, err := apply(reqCtx, req.ID, callerID)
	if err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.NewLikeResult(note))
}

// Delete handles DELETE /api/notes with the id in the body or the query.
func (c *Notes) Delete(ctx *gin.Context) {
	callerID, ok := c.resolver.Resolve(ctx.Request)
	if !ok {
		writeError(ctx, errors.Wrap(model.ErrUnauthorized, "cannot identify caller"))
		return
	}

	req := new(dto.NoteIDRequest)
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(req); err != nil {
			writeError(ctx, errors.Wrap(model.ErrInvalidInput, "missing id"))
			return
		}
	}
	if req.ID == "" {
		req.ID = ctx.Query("id")
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()

	if err := c.svc.Delete(reqCtx, req.ID, callerID); err != nil {
		writeError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, dto.DeleteResult{Success: true})
}

// WhoAmI handles GET /api/notes/whoami.
func (c *Notes) WhoAmI(ctx *gin.Context) {
	resp := dto.WhoAmI{}
	if callerID, ok := c.resolver.Resolve(ctx.Request); ok {
		resp.ID = &callerID
	}

	ctx.JSON(http.StatusOK, resp)
}

// statusOf maps an error onto an HTTP status and a short message.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, model.ErrAlreadyLiked):
		return http.StatusForbidden, "Already liked"
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "note not found"
	case errors.Is(err, model.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "store unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError writes {"error": msg}, logging 5xx at error and 4xx at warn.
func writeError(ctx *gin.Context, err error) {
	status, msg := statusOf(err)
	logger := logFromCtx(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error("notes http error", zap.Int("status", status), zap.Error(err))
	} else {
		logger.Warn("notes http warning", zap.Int("status", status), zap.String("message", err.Error()))
	}

	ctx.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// logFromCtx returns the request logger, or the shared logger outside
// the logging middleware.
func logFromCtx(ctx *gin.Context) logSDK.Logger {
	if logger := gmw.GetLogger(ctx); logger != nil {
		return logger.Named("notes_http")
	}
	return log.Logger.Named("notes_http")
}
