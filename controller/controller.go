// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package controller wires the sniffer, the engine connection pool and the
// HTTP control surface together into one runnable program, and owns the
// config-reload/shutdown lifecycle.
package controller

import (
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/schemawire/common"
	"github.com/packetd/schemawire/confengine"
	"github.com/packetd/schemawire/engine"
	"github.com/packetd/schemawire/internal/pubsub"
	"github.com/packetd/schemawire/logger"
	"github.com/packetd/schemawire/schema"
	"github.com/packetd/schemawire/server"
	"github.com/packetd/schemawire/sniffer"
	_ "github.com/packetd/schemawire/sniffer/libpcap"
)

type Controller struct {
	cfg       Config
	engineCfg engine.Config
	buildInfo common.BuildInfo

	snif sniffer.Sniffer
	pool *engine.Pool
	svr  *server.Server
	ps   *pubsub.PubSub

	stop chan struct{}
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}

	if opts.Filename == "" {
		opts.Filename = "schemawire.log"
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}

	logger.SetOptions(opts)
	return nil
}

// New assembles a Controller from a loaded config file: it loads the
// protocol schema, builds the engine's connection pool bound to it, and
// creates the sniffer and the HTTP server. The sniffer's capture goroutines
// start here, but no segment reaches the pool until Start installs the
// packet callback; the HTTP server is only served from Start.
func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	var cfg Config
	if err := conf.UnpackChild("controller", &cfg); err != nil {
		return nil, err
	}
	if cfg.Schema == "" {
		return nil, errors.New("controller: schema path not configured")
	}

	s, err := schema.Load(cfg.Schema)
	if err != nil {
		return nil, errors.Wrap(err, "load schema")
	}

	var engineCfg engine.Config
	if err := conf.UnpackChild("engine", &engineCfg); err != nil {
		return nil, err
	}

	snif, err := sniffer.New(conf)
	if err != nil {
		return nil, err
	}

	ps := pubsub.New()
	sink := engine.NewSink(s, engineCfg.Sink)
	pool, err := engine.NewPool(s, engineCfg.Port, sink, ps, engineCfg.Metrics)
	if err != nil {
		return nil, err
	}

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg:       cfg,
		engineCfg: engineCfg,
		buildInfo: buildInfo,
		snif:      snif,
		pool:      pool,
		svr:       svr,
		ps:        ps,
		stop:      make(chan struct{}),
	}, nil
}

func (c *Controller) Start() error {
	c.setupServer()

	go c.removeExpiredConn()

	if c.svr != nil {
		go func() {
			err := c.svr.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("failed to start server: %v", err)
			}
		}()
	}

	c.snif.SetOnL4Packet(c.pool.OnL4Packet)
	return nil
}

func (c *Controller) removeExpiredConn() {
	ttl := c.engineCfg.IdleTimeout
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.pool.RemoveExpired(ttl)

		case <-c.stop:
			return
		}
	}
}

func (c *Controller) recordMetrics() {
	uptime.Set(float64(time.Now().Unix() - common.Started()))
	buildInfoGauge.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Inc()
}

// Reload re-reads the sniffer's BPF-filter-affecting settings. The schema
// and the engine's port/sink wiring are not hot-reloadable: doing so safely
// would mean draining every tracked connection's in-flight transform.Context
// first, which the capture program doesn't need for its one long-lived run.
func (c *Controller) Reload(conf *confengine.Config) error {
	var cfg sniffer.Config
	if err := conf.UnpackChild("sniffer", &cfg); err != nil {
		return err
	}
	return c.snif.Reload(&cfg)
}

func (c *Controller) Stop() {
	close(c.stop)
	c.snif.Close()
	c.pool.Close()
}
