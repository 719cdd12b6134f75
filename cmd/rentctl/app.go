package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/client"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/config"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/liststore"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/metrics"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/resource"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/signal"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/state"
)

// app holds the dependencies shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	auth      *client.AuthManager
	client    *client.Client
	catalog   *resource.Catalog
	container *state.Container
	recorder  liststore.Recorder
}

func newApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	var store client.TokenStore
	if cfg.Auth.TokenFile != "" {
		store = client.NewFileTokenStore(cfg.Auth.TokenFile)
	} else {
		store = client.NewMemoryTokenStore("")
	}
	auth := client.NewAuthManager(store, log)
	if cfg.Auth.Token != "" {
		if err := auth.SetToken(cfg.Auth.Token); err != nil {
			return nil, fmt.Errorf("storing token: %w", err)
		}
	}
	auth.OnSignOut(func() {
		log.Warn("session ended, sign in again to continue")
	})

	c, err := client.NewClient(cfg.Target,
		client.WithAuth(auth),
		client.WithLogger(log),
		client.WithSignOutOnUnauthorized(cfg.Auth.SignOutOnUnauthorized),
	)
	if err != nil {
		return nil, err
	}

	images := normalize.ImageResolver{
		StaticRoot:  cfg.Assets.StaticRoot,
		Placeholder: cfg.Assets.Placeholder,
		DefaultExt:  cfg.Assets.DefaultExt,
	}
	return &app{
		cfg:       cfg,
		logger:    log,
		auth:      auth,
		client:    c,
		catalog:   resource.NewCatalog(images),
		container: state.NewContainer(log),
	}, nil
}

// service returns the REST service of the named resource.
func (a *app) service(name string) (*resource.Service, error) {
	def, err := a.catalog.Lookup(name)
	if err != nil {
		return nil, &commandError{message: fmt.Sprintf("unknown resource %q", name), err: err}
	}
	return resource.NewService(a.client, def, a.logger), nil
}

// store creates the list store of svc's resource.
func (a *app) store(svc *resource.Service) *liststore.Store {
	def := svc.Definition()
	opts := []liststore.Option{
		liststore.WithPreferredKeys(def.PreferredKeys...),
		liststore.WithLoadTimeout(a.cfg.Store.LoadTimeout),
		liststore.WithLogger(a.logger),
		liststore.WithContainer(a.container),
		liststore.OnAuthFailure(func(err error) {
			a.logger.Debug("request rejected as unauthorized", zap.Error(err))
		}),
	}
	if a.recorder != nil {
		opts = append(opts, liststore.WithRecorder(a.recorder))
	}
	return liststore.New(def.Schema, opts...)
}

// startMetrics starts the Prometheus exporter when enabled and routes store
// events to it. The returned function stops it.
func (a *app) startMetrics() (func(context.Context) error, error) {
	if !a.cfg.Metrics.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	cfg := metrics.DefaultPrometheusExporterConfig()
	cfg.Addr = a.cfg.Metrics.Addr
	cfg.Path = a.cfg.Metrics.Path

	exporter := metrics.NewPrometheusExporter(cfg)
	if err := exporter.Start(); err != nil {
		return nil, fmt.Errorf("starting metrics exporter: %w", err)
	}
	a.recorder = exporter
	a.logger.Info("metrics exporter listening",
		zap.String("addr", exporter.GetAddress()),
		zap.String("path", exporter.GetPath()),
	)
	return exporter.Stop, nil
}

// relay connects the signal relay. It fails when Redis is not enabled.
func (a *app) relay(board *signal.Board) (*signal.RedisRelay, func() error, error) {
	if !a.cfg.Redis.Enabled {
		return nil, nil, &commandError{message: "redis is not enabled; set redis.enabled and redis.addr"}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	return signal.NewRedisRelay(rdb, a.cfg.Redis.Channel, board, a.logger), rdb.Close, nil
}
