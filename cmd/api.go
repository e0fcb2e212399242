package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lovewall/love-wall/internal/web"
	"github.com/lovewall/love-wall/internal/web/notes/controller"
	"github.com/lovewall/love-wall/internal/web/notes/identity"
	"github.com/lovewall/love-wall/internal/web/notes/service"
	"github.com/lovewall/love-wall/library/log"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `HTTP API and web client of the love wall`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := runAPI(ctx); err != nil {
			log.Logger.Panic("run api", zap.Error(err))
		}
	},
}

func init() {
	rootCMD.AddCommand(apiCMD)
}

// settingDuration reads a duration setting, falling back to def when unset.
func settingDuration(key string, def time.Duration) time.Duration {
	raw := gconfig.Shared.Get(key)
	if raw == nil {
		return def
	}
	value, err := parseStrictDuration(raw)
	if err != nil || value <= 0 {
		return def
	}
	return value
}

// settingBool reads a boolean setting with the same rules as startup
// validation, so `yes` and `no` mean what the validator accepted.
func settingBool(key string) bool {
	value, _ := parseStrictBool(gconfig.Shared.Get(key))
	return value
}

func runAPI(ctx context.Context) error {
	if !gconfig.Shared.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	notesStore, err := newNoteStore(ctx)
	if err != nil {
		return errors.Wrap(err, "new note store")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := notesStore.Close(closeCtx); err != nil {
			log.Logger.Error("close note store", zap.Error(err))
		}
	}()

	svc, err := service.NewService(notesStore.Store,
		log.Logger.Named("notes_service"),
		nil,
		service.Settings{MaxTextLength: gconfig.Shared.GetInt("settings.notes.max_text_length")},
	)
	if err != nil {
		return errors.Wrap(err, "new notes service")
	}

	notes, err := controller.New(svc,
		identity.NewHeaderResolver(settingBool("settings.identity.trust_remote_addr")),
		settingDuration("settings.notes.request_timeout", controller.DefaultRequestTimeout),
	)
	if err != nil {
		return errors.Wrap(err, "new notes controller")
	}

	server, err := web.NewServer(web.Options{
		Notes:            notes,
		Site:             web.LoadSiteConfig(),
		CORSAllowedHosts: gconfig.Shared.GetStringSlice("settings.web.cors_allowed_hosts"),
		Logger:           log.Logger.Named("web"),
	})
	if err != nil {
		return errors.Wrap(err, "new web server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.RunServer(gctx, strings.TrimSpace(gconfig.Shared.GetString("listen")), server)
	})
	if notesStore.prepare != nil {
		g.Go(func() error {
			// the api keeps serving while indexes build
			if err := notesStore.prepare(gctx); err != nil {
				log.Logger.Warn("prepare note store", zap.Error(err))
			}
			return nil
		})
	}

	return g.Wait()
}
