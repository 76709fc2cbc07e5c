package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	auth "github.com/hsmss/go-console-auth"
	"github.com/hsmss/go-console-auth/storage"
)

func main() {
	godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	cfg, err := auth.LoadConfig(os.Getenv("CONSOLE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if cfg.Debug {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	logger := auth.NewZerologLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open session storage")
	}
	defer backend.Close()

	store, err := auth.OpenStore(ctx, backend, auth.StoreWithLogger(logger))
	if err != nil {
		log.Fatal().Err(err).Msg("open session store")
	}
	defer store.Close()

	sessions := auth.NewManager(store, auth.ManagerWithLogger(logger))

	guard := auth.NewGuard(sessions, cfg.Classifier(),
		auth.GuardWithLogger(logger),
		auth.GuardWithPaths(cfg.Routes.Login, cfg.Routes.Landing),
	)

	authClient := auth.NewAuthClient(cfg.AuthBaseURL, auth.AuthClientWithLogger(logger))
	apiClient := auth.NewAPIClient(cfg.APIBaseURL, authClient, sessions,
		auth.APIClientWithLogger(logger),
	)

	engine := django.New("./views", ".html")

	app := fiber.New(fiber.Config{
		Views: engine,
	})

	routeGuard := auth.NewRouteGuard(guard, auth.RouteGuardWithLogger(logger))
	app.Use(routeGuard.Middleware())

	auth.RegisterAuthRoutes(app,
		auth.WithControllerLogger(logger),
		auth.WithControllerClient(authClient),
		auth.WithControllerSessions(sessions),
		auth.WithControllerGuard(routeGuard),
		auth.WithControllerDebug(cfg.Debug),
		auth.WithControllerRoutes(&auth.AuthControllerRoutes{
			Login:   cfg.Routes.Login,
			Logout:  "/logout",
			Signup:  "/signup",
			Landing: cfg.Routes.Landing,
		}),
	)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect(cfg.Routes.Login, fiber.StatusFound)
	})

	app.Get(cfg.Routes.Landing, func(c *fiber.Ctx) error {
		identity, _ := auth.CurrentIdentity(c)

		stats := fetchDashboard(c.UserContext(), apiClient, logger)

		return c.Render("dashboard", fiber.Map{
			"identity": identity,
			"stats":    stats,
			"notice":   auth.ConsumeNotice(c),
		})
	})

	for _, path := range cfg.Routes.Protected {
		if path == cfg.Routes.Landing {
			continue
		}
		registerPage(app, path)
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		app.ShutdownWithTimeout(5 * time.Second)
	}()

	log.Info().Str("listen", cfg.Listen).Msg("console gateway starting")
	if err := app.Listen(cfg.Listen); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func openBackend(ctx context.Context, cfg *auth.Config) (storage.Backend, error) {
	switch cfg.Storage.Driver {
	case "redis":
		return storage.NewRedis(cfg.Storage.Redis), nil
	case "sqlite":
		return storage.NewSQLite(ctx, cfg.Storage.SQLite)
	default:
		return storage.NewMemory(), nil
	}
}

func registerPage(app *fiber.App, path string) {
	name := path[1:]
	app.Get(path, func(c *fiber.Ctx) error {
		identity, _ := auth.CurrentIdentity(c)
		return c.Render("page", fiber.Map{
			"identity": identity,
			"title":    name,
		})
	})
}

// fetchDashboard pulls the summary payload through the bearer client. A
// failed call renders an empty dashboard rather than killing the page;
// expired grants are already handled inside the client.
func fetchDashboard(ctx context.Context, api *auth.APIClient, logger auth.Logger) string {
	res, err := api.Get(ctx, "/dashboard")
	if err != nil {
		logger.Warn("dashboard fetch: %s", err)
		return ""
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		logger.Warn("dashboard read: %s", err)
		return ""
	}

	return string(body)
}
