// Command sharedrop runs the share upload pipeline: it extracts shared
// content into upload operations and drives their background upload.
//
// With -submit it extracts the attachments listed in a manifest file,
// submits them as one group, and exits. Without -submit it runs as the
// worker that picks up pending groups from the shared store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/sharedrop/container"
	"github.com/hazyhaar/sharedrop/extract"
	"github.com/hazyhaar/sharedrop/queue"
	"github.com/hazyhaar/sharedrop/remote"
	"github.com/hazyhaar/sharedrop/service"
	"github.com/hazyhaar/sharedrop/session"
)

type config struct {
	ContainerDir string `yaml:"container_dir"`
	StorePath    string `yaml:"store_path"`

	API struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		SiteID  int64  `yaml:"site_id"`
	} `yaml:"api"`

	PostStatus string `yaml:"post_status"`

	Extract extract.Config `yaml:"extract"`
	Session session.Config `yaml:"session"`
}

func (c *config) defaults() {
	if c.ContainerDir == "" {
		c.ContainerDir = env("SHAREDROP_CONTAINER", "data/container")
	}
	if c.StorePath == "" {
		c.StorePath = env("SHAREDROP_STORE", "data/sharedrop.db")
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = env("SHAREDROP_API", "https://public-api.example.com/rest/v1.1")
	}
	if c.API.Token == "" {
		c.API.Token = os.Getenv("SHAREDROP_TOKEN")
	}
	if c.PostStatus == "" {
		c.PostStatus = "draft"
	}
}

func loadConfig(path string) (*config, error) {
	var cfg config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.defaults()
	return &cfg, nil
}

// manifest lists the attachments of one share, as the sharing side hands
// them over.
type manifest struct {
	SiteID      int64 `yaml:"site_id"`
	Attachments []struct {
		Type string `yaml:"type"`
		Text string `yaml:"text"`
		Path string `yaml:"path"`
	} `yaml:"attachments"`
}

func main() {
	var (
		configPath = flag.String("config", env("SHAREDROP_CONFIG", ""), "config file path")
		submitPath = flag.String("submit", "", "submit the share manifest at this path and exit")
		finishSess = flag.String("finish-session", "", "reconcile a finished background session and exit")
		logLevel   = flag.String("log-level", env("LOG_LEVEL", "info"), "debug, info, warn, or error")
	)
	flag.Parse()

	var lvl slog.Level
	switch *logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	cfg.Extract.Logger = logger
	cfg.Session.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := queue.Open(cfg.StorePath, logger)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	media, err := container.New(cfg.ContainerDir)
	if err != nil {
		slog.Error("open container", "error", err)
		os.Exit(1)
	}

	client := remote.NewClient(cfg.API.BaseURL, cfg.API.Token, logger)
	notifier := service.NewStoreNotifier(store, logger)
	mgr := session.New(store, media, client, notifier, cfg.Session)
	svc := service.New(store, media, mgr, cfg.API.Token, logger)

	switch {
	case *submitPath != "":
		if err := submit(ctx, cfg, media, svc, *submitPath); err != nil {
			slog.Error("submit share", "error", err)
			os.Exit(1)
		}
	case *finishSess != "":
		if err := mgr.FinishEvents(ctx, *finishSess); err != nil {
			slog.Error("finish session", "session", *finishSess, "error", err)
			os.Exit(1)
		}
	default:
		if err := mgr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker", "error", err)
			os.Exit(1)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mgr.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
			os.Exit(1)
		}
	}
}

func submit(ctx context.Context, cfg *config, media *container.Container, svc *service.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}

	atts := make([]extract.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		att := extract.Attachment{Type: a.Type, Path: a.Path}
		if a.Text != "" {
			att.Data = []byte(a.Text)
		}
		if a.Type == extract.TypeImage && a.Path != "" {
			att.Data, err = os.ReadFile(a.Path)
			if err != nil {
				return fmt.Errorf("read image %s: %w", a.Path, err)
			}
			att.Path = ""
		}
		atts = append(atts, att)
	}

	se := extract.NewShareExtractor(media, cfg.Extract)
	if !se.ValidContent(atts) {
		return fmt.Errorf("manifest has no shareable content")
	}
	share, err := se.LoadShare(ctx, atts)
	if err != nil {
		return err
	}

	siteID := m.SiteID
	if siteID == 0 {
		siteID = cfg.API.SiteID
	}
	groupID, err := svc.SubmitShare(ctx, siteID, share, cfg.PostStatus)
	if err != nil {
		return err
	}
	slog.Info("share submitted", "group", groupID)
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
