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

// Package controller wires the persisted monitored-server configuration
// (spec.md §6's (name, address, port, protocol, timeout_ms, script_text)
// tuple) to a concurrent probe scheduler: one goroutine per monitored
// server, each running its compiled script on a fixed interval and
// recording the result through the exporter, plus the admin HTTP surface
// (/metrics, /-/logger, /-/reload).
package controller

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/packetd/probed/common"
	"github.com/packetd/probed/confengine"
	"github.com/packetd/probed/exporter"
	"github.com/packetd/probed/internal/sigs"
	"github.com/packetd/probed/internal/wait"
	"github.com/packetd/probed/logger"
	"github.com/packetd/probed/probe"
	"github.com/packetd/probed/script"
	"github.com/packetd/probed/server"
)

// ServerConfig is one monitored server's persisted configuration, unpacked
// directly from the `servers` list in the YAML config file. ScriptFile, if
// set, is read relative to the process's working directory; Script, if
// set, is used verbatim. Exactly one of the two should be set.
type ServerConfig struct {
	Name               string        `config:"name"`
	Address            string        `config:"address"`
	Port               int           `config:"port"`
	Protocol           string        `config:"protocol"`
	Timeout            time.Duration `config:"timeout"`
	Interval           time.Duration `config:"interval"`
	Script             string        `config:"script"`
	ScriptFile         string        `config:"scriptFile"`
	InsecureSkipVerify bool          `config:"insecureSkipVerify"`
}

// Config is the controller's own persisted configuration child.
type Config struct {
	Servers []ServerConfig `config:"servers"`
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}

	if opts.Filename == "" {
		opts.Filename = "probed.log"
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

// job is one monitored server's compiled script plus its scheduling
// parameters, resolved once at (re)load time so the hot scheduling loop
// never re-parses the script.
type job struct {
	name     string
	cfg      probe.ServerConfig
	script   *script.Script
	interval time.Duration
}

func newJob(sc ServerConfig) (*job, error) {
	text := sc.Script
	if sc.ScriptFile != "" {
		b, err := os.ReadFile(sc.ScriptFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read script file %q for server %q", sc.ScriptFile, sc.Name)
		}
		text = string(b)
	}

	scr, err := script.Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse script for server %q", sc.Name)
	}

	timeout := sc.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	interval := sc.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &job{
		name: sc.Name,
		cfg: probe.ServerConfig{
			Name:               sc.Name,
			Address:            sc.Address,
			Port:               sc.Port,
			Protocol:           sc.Protocol,
			Timeout:            timeout,
			InsecureSkipVerify: sc.InsecureSkipVerify,
		},
		script:   scr,
		interval: interval,
	}, nil
}

// Controller schedules every monitored server's probe concurrently and
// exposes the admin HTTP surface. Its shape (Config/New/Start/Reload/Stop)
// mirrors the teacher's sniffer-driven controller, generalized from
// consuming reconstructed round-trips off a pub/sub queue to scheduling
// active probes directly.
type Controller struct {
	ctx       context.Context
	cancel    context.CancelFunc
	buildInfo common.BuildInfo

	exp *exporter.Exporter
	svr *server.Server

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New loads the controller's own configuration section, builds one job per
// configured monitored server, and prepares (but does not start) the admin
// server and exporter.
func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if err := setupLogger(conf); err != nil {
		return nil, err
	}

	var expCfg exporter.Config
	if err := conf.UnpackChild("exporter", &expCfg); err != nil {
		return nil, err
	}
	exp := exporter.New(expCfg)

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		ctx:       ctx,
		cancel:    cancel,
		buildInfo: buildInfo,
		exp:       exp,
		svr:       svr,
		cancels:   make(map[string]context.CancelFunc),
	}, nil
}

// Start wires the admin routes and launches one supervised scheduling
// goroutine per monitored server parsed out of conf.
func (c *Controller) Start(conf *confengine.Config) error {
	var cfg Config
	if err := conf.UnpackChild("controller", &cfg); err != nil {
		return err
	}

	c.setupServer()

	for _, sc := range cfg.Servers {
		j, err := newJob(sc)
		if err != nil {
			return err
		}
		c.launch(j)
	}

	if c.svr != nil {
		go func() {
			err := c.svr.ListenAndServe()
			if !errors.Is(err, io.EOF) {
				logger.Errorf("failed to start server: %v", err)
			}
		}()
	}
	return nil
}

// launch starts one job's supervised scheduling loop under its own
// cancellable child context, tracked so Reload/Stop can tear it down
// independently of the others.
func (c *Controller) launch(j *job) {
	jctx, jcancel := context.WithCancel(c.ctx)

	c.mu.Lock()
	c.cancels[j.name] = jcancel
	c.mu.Unlock()

	go wait.Until(jctx, func() { c.runJob(jctx, j) })
}

// runJob ticks j.script against j.cfg on j.interval until ctx is done. It
// blocks internally exactly the way internal/wait.Until expects of its
// supervised function, so a panic inside one probe restarts the loop
// rather than silently killing the server's scheduling goroutine.
func (c *Controller) runJob(ctx context.Context, j *job) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := probe.Run(ctx, j.cfg, j.script)
			if err != nil {
				logger.Errorf("failed to run probe for %q: %v", j.name, err)
				continue
			}
			c.exp.Record(res)

		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) setupServer() {
	if c.svr == nil {
		return
	}

	c.svr.RegisterGetRoute("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	c.svr.RegisterGetRoute("/probe/metrics", func(w http.ResponseWriter, r *http.Request) {
		c.exp.WritePrometheus(w)
	})

	c.svr.RegisterPostRoute("/-/logger", func(w http.ResponseWriter, r *http.Request) {
		level := r.FormValue("level")
		logger.SetLoggerLevel(level)
		w.Write([]byte(`{"status": "success"}`))
	})
	c.svr.RegisterPostRoute("/-/reload", func(w http.ResponseWriter, r *http.Request) {
		if err := sigs.SelfReload(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
	})
}

// Reload re-reads the monitored-server list and replaces every scheduling
// goroutine wholesale: simpler than diffing old vs. new jobs, and correct
// since each job is a cheap, stateless ticker loop with no connection held
// open across probes.
func (c *Controller) Reload(conf *confengine.Config) error {
	var cfg Config
	if err := conf.UnpackChild("controller", &cfg); err != nil {
		return err
	}

	jobs := make([]*job, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		j, err := newJob(sc)
		if err != nil {
			return err
		}
		jobs = append(jobs, j)
	}

	c.mu.Lock()
	for name, cancel := range c.cancels {
		cancel()
		delete(c.cancels, name)
	}
	c.mu.Unlock()

	for _, j := range jobs {
		c.launch(j)
	}
	return nil
}

// Stop cancels every scheduling goroutine and releases the exporter's
// background GC goroutine.
func (c *Controller) Stop() {
	c.cancel()
	c.exp.Close()
}
