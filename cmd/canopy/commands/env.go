package commands

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dyluth/canopy/internal/config"
	"github.com/dyluth/canopy/internal/mirror"
	"github.com/dyluth/canopy/internal/printer"
	"github.com/dyluth/canopy/internal/resource"
	"github.com/dyluth/canopy/internal/tree"
	"github.com/dyluth/canopy/pkg/okr"
)

// Constructors are variables so tests can substitute fakes.
var (
	newAPI = func(cfg *config.CanopyConfig) (resource.API, error) {
		return resource.NewHTTPClient(resource.Options{
			BaseURL: cfg.API.BaseURL,
			Token:   cfg.API.Token(),
			Timeout: cfg.API.TimeoutDuration(),
		})
	}

	newMirror = func(cfg *config.CanopyConfig) (*mirror.Client, error) {
		return mirror.NewClientFromURL(cfg.Mirror.RedisURL, cfg.Mirror.Namespace)
	}
)

// session bundles what a command needs to talk to the backend.
type session struct {
	cfg    *config.CanopyConfig
	engine *tree.Engine
	mirror *mirror.Client // nil when no mirror is configured
}

func (s *session) Close() {
	if s.mirror != nil {
		s.mirror.Close()
	}
}

// loadConfig reads canopy.yml and prints a friendly error when it is missing
// or invalid.
func loadConfig() (*config.CanopyConfig, error) {
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return nil, printer.Error(
				fmt.Sprintf("%s not found", path),
				"Canopy needs a configuration file to reach the backend.",
				[]string{"Create one:\n  canopy init --base-url <url> --user-id <id>", "Point at an existing file with --config"},
			)
		}
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"File": path},
			nil,
		)
	}
	return cfg, nil
}

// connectMirror opens the mirror when one is configured. A mirror that
// cannot be reached is reported and treated as absent when optional.
func connectMirror(ctx context.Context, cfg *config.CanopyConfig, required bool) (*mirror.Client, error) {
	if cfg.Mirror.RedisURL == "" {
		if required {
			return nil, printer.Error(
				"no mirror configured",
				"This command reads from the Redis mirror but mirror.redis_url is empty.",
				[]string{"Set mirror.redis_url in canopy.yml"},
			)
		}
		return nil, nil
	}

	client, err := newMirror(cfg)
	if err != nil {
		return nil, printer.Error("invalid mirror configuration", err.Error(), nil)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		if required {
			return nil, printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not connect to Redis: %v", err),
				map[string]string{"URL": cfg.Mirror.RedisURL},
				[]string{"Check the Redis server is running", "Clear mirror.redis_url to work without the mirror"},
			)
		}
		printer.Warning("Mirror unreachable, continuing without it: %v\n", err)
		return nil, nil
	}
	return client, nil
}

// openSession loads config and builds an engine wired to the configured
// backend and, when reachable, the mirror.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	api, err := newAPI(cfg)
	if err != nil {
		return nil, printer.Error("invalid api configuration", err.Error(), []string{"Check api.base_url in canopy.yml"})
	}

	mc, err := connectMirror(ctx, cfg, false)
	if err != nil {
		return nil, err
	}

	opts := []tree.Option{
		tree.WithConcurrency(*cfg.Load.MaxConcurrency),
		tree.WithLogger(engineLogger()),
	}
	if cfg.Load.Strict {
		opts = append(opts, tree.WithPolicy(tree.StrictPolicy))
	}
	if mc != nil {
		opts = append(opts, tree.WithPublisher(mc))
	}

	return &session{
		cfg:    cfg,
		engine: tree.NewEngine(api, cfg.UserID(), opts...),
		mirror: mc,
	}, nil
}

func engineLogger() *log.Logger {
	if verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// resolveKind returns the kind flag or, when empty, the kind configured for
// rootID under sync.roots.
func resolveKind(cfg *config.CanopyConfig, rootID okr.ID, flag string) (okr.RootKind, error) {
	if flag != "" {
		kind, err := okr.ParseRootKind(flag)
		if err != nil {
			return "", printer.Error("invalid --kind", err.Error(), []string{"Use --kind mission or --kind project"})
		}
		return kind, nil
	}

	for _, root := range cfg.Sync.Roots {
		if okr.ID(root.ID) == rootID {
			return root.RootKind(), nil
		}
	}

	return "", printer.Error(
		fmt.Sprintf("kind of root '%s' is unknown", rootID),
		"Canopy needs to know whether the root is a mission or a project.",
		[]string{"Pass --kind mission or --kind project", "List the root under sync.roots in canopy.yml"},
	)
}

// load fetches the tree, warns about degraded subtrees and caches it.
func (s *session) load(ctx context.Context, rootID okr.ID, kind okr.RootKind) (*tree.Snapshot, error) {
	snap, err := s.engine.Load(ctx, rootID, kind)
	if err != nil {
		if resource.IsNotFound(err) {
			return nil, printer.Error(
				fmt.Sprintf("%s '%s' not found", kind, rootID),
				"The backend has no such root.",
				[]string{"Check the id and --kind"},
			)
		}
		return nil, printer.Explain(err)
	}

	printer.PartialLoad(snap)
	s.cache(ctx)
	return snap, nil
}

// cache saves the engine's current snapshot to the mirror. Failures only warn.
func (s *session) cache(ctx context.Context) {
	if s.mirror == nil {
		return
	}
	snap := s.engine.Snapshot()
	if snap == nil {
		return
	}
	if err := s.mirror.SaveSnapshot(ctx, snap); err != nil {
		printer.Warning("Failed to update cached tree: %v\n", err)
	}
}

// parseStatuses splits a comma-separated --status value.
func parseStatuses(value string) ([]okr.TaskStatus, error) {
	if value == "" {
		return nil, nil
	}

	var out []okr.TaskStatus
	for _, part := range strings.Split(value, ",") {
		status := okr.TaskStatus(strings.TrimSpace(part))
		if err := status.Validate(); err != nil {
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}
