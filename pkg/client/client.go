// Copyright 2023 The jackal Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"context"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/ortuman/jackal-client/pkg/config"
	"github.com/ortuman/jackal-client/pkg/hook"
	"github.com/ortuman/jackal-client/pkg/log"
	"github.com/ortuman/jackal-client/pkg/muc"
	"github.com/ortuman/jackal-client/pkg/roster"
	"github.com/ortuman/jackal-client/pkg/storage"
	"github.com/ortuman/jackal-client/pkg/storage/repository"
	"github.com/ortuman/jackal-client/pkg/stream"
)

const (
	defaultBootstrapTimeout = time.Minute
	defaultShutdownTimeout  = time.Second * 30
)

type starter interface {
	Start(ctx context.Context) error
}

type stopper interface {
	Stop(ctx context.Context) error
}

type startStopper interface {
	starter
	stopper
}

// Client ties together every state engine of an XMPP account session.
type Client struct {
	disp   *stream.Dispatcher
	hk     *hook.Hooks
	roster *roster.Roster
	muc    *muc.Service
	cache  repository.Roster

	starters []starter
	stoppers []stopper

	logger kitlog.Logger
}

// New returns a new client instance writing outbound stanzas through sender.
// Inbound stanzas are expected to be handed to Dispatcher().Dispatch by the transport.
func New(cfg *config.Config, sender stream.Sender, logger kitlog.Logger) *Client {
	c := &Client{
		logger: kitlog.With(logger, "module", "client"),
	}
	c.hk = hook.NewHooks(logger)
	c.disp = stream.NewDispatcher(sender, cfg.Stream, logger)

	if rep := storage.New(cfg.Storage, logger); rep != nil {
		c.cache = rep
		c.registerStartStopper(rep)

		// cached roster must be in place before the roster engine requests it
		c.disp.OnBeforeStreamEstablished(c.loadRoster)
		c.disp.OnStreamEnded(c.storeRoster)
		c.hk.AddHook(hook.RosterInitialReceived, c.onRosterReceived, hook.LowestPriority)
	}
	c.roster = roster.New(c.disp, c.hk, cfg.Roster, logger)
	c.registerStartStopper(c.roster)

	c.muc = muc.New(c.disp, c.hk, cfg.MUC, logger)
	c.registerStartStopper(c.muc)

	if cfg.HTTPPort > 0 {
		c.registerStartStopper(newHTTPServer(cfg.HTTPPort, c.logger))
	}
	return c
}

// Load reads the configuration file at configFile and returns a client logging to stderr
// as configured.
func Load(configFile string, sender stream.Sender) (*Client, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return New(cfg, sender, log.NewDefaultLogger(cfg.Logger.Level, cfg.Logger.Format)), nil
}

// Dispatcher returns the stanza dispatcher of the session.
func (c *Client) Dispatcher() *stream.Dispatcher { return c.disp }

// Hooks returns the event bus every engine posts its events to.
func (c *Client) Hooks() *hook.Hooks { return c.hk }

// Roster returns the roster engine.
func (c *Client) Roster() *roster.Roster { return c.roster }

// MUC returns the MUC service.
func (c *Client) MUC() *muc.Service { return c.muc }

// Start starts every client subsystem.
func (c *Client) Start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultBootstrapTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		for _, s := range c.starters {
			if err := s.Start(ctx); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		level.Info(c.logger).Log("msg", "client started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stores current roster and stops every client subsystem in reverse order.
func (c *Client) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	if err := c.storeRoster(ctx); err != nil {
		level.Warn(c.logger).Log("msg", "failed to store roster", "err", err)
	}
	errCh := make(chan error, 1)
	go func() {
		for _, st := range c.stoppers {
			if err := st.Stop(ctx); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- nil
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		level.Info(c.logger).Log("msg", "client stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) loadRoster(ctx context.Context) error {
	account := c.account()
	if len(account) == 0 || len(c.roster.Items()) > 0 {
		return nil
	}
	doc, err := c.cache.FetchRoster(ctx, account)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	if err := c.roster.Import(*doc); err != nil {
		return err
	}
	level.Info(c.logger).Log("msg", "loaded cached roster", "items", len(doc.Items), "ver", doc.Ver)
	return nil
}

func (c *Client) storeRoster(ctx context.Context) error {
	account := c.account()
	if c.cache == nil || len(account) == 0 {
		return nil
	}
	doc := c.roster.Export()
	if err := c.cache.UpsertRoster(ctx, account, doc); err != nil {
		return err
	}
	level.Debug(c.logger).Log("msg", "stored roster", "items", len(doc.Items), "ver", doc.Ver)
	return nil
}

func (c *Client) onRosterReceived(ctx context.Context, _ *hook.ExecutionContext) error {
	return c.storeRoster(ctx)
}

func (c *Client) account() string {
	localJID := c.disp.LocalJID()
	if localJID == nil {
		return ""
	}
	return localJID.ToBareJID().String()
}

func (c *Client) registerStartStopper(ss startStopper) {
	c.starters = append(c.starters, ss)
	c.stoppers = append([]stopper{ss}, c.stoppers...)
}

//go:generate moq -out sender.mock_test.go . streamSender:senderMock
type streamSender interface {
	stream.Sender
}
