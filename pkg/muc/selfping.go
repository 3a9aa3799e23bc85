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

package muc

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/log/level"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/hook"
	mucmodel "github.com/ortuman/jackal-client/pkg/model/muc"
	"github.com/ortuman/jackal-client/pkg/stream"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
)

// selfPinger checks room liveness by pinging the local occupant address (XEP-0410) once the room went quiet.
// Every method except ping must run on the room queue.
type selfPinger struct {
	r   *Room
	cfg SelfPingConfig

	gen         uint64
	softTm      *time.Timer
	hardTm      *time.Timer
	stopCh      chan struct{}
	stale       bool
	hardExpired bool
}

const (
	defaultSoftTimeout  = time.Minute
	defaultHardTimeout  = time.Minute * 3
	defaultPingInterval = time.Second * 15
	defaultPingTimeout  = time.Minute
)

func newSelfPinger(r *Room, cfg SelfPingConfig) *selfPinger {
	if cfg.SoftTimeout <= 0 {
		cfg.SoftTimeout = defaultSoftTimeout
	}
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = defaultHardTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}
	return &selfPinger{r: r, cfg: cfg}
}

// touch records room traffic.
func (p *selfPinger) touch() []event {
	if !p.cfg.Enabled {
		return nil
	}
	var evs []event
	if p.stale {
		p.stale = false
		reportLiveness("fresh")
		level.Info(p.r.logger).Log("msg", "room is fresh again")

		evs = append(evs, event{name: hook.MUCRoomFresh, inf: &hook.MUCRoomInfo{
			RoomJID: p.r.roomJID,
			Self:    p.r.self,
		}})
	}
	p.reset()
	return evs
}

func (p *selfPinger) reset() {
	p.stop()
	if !p.cfg.Enabled {
		return
	}
	gen := p.gen
	p.softTm = time.AfterFunc(p.cfg.SoftTimeout, func() {
		p.r.process(context.Background(), func() []event { return p.onSoftTimeout(gen) })
	})
	p.hardTm = time.AfterFunc(p.cfg.HardTimeout, func() {
		p.r.process(context.Background(), func() []event { return p.onHardTimeout(gen) })
	})
}

func (p *selfPinger) stop() {
	p.gen++
	p.hardExpired = false
	if p.softTm != nil {
		p.softTm.Stop()
		p.softTm = nil
	}
	if p.hardTm != nil {
		p.hardTm.Stop()
		p.hardTm = nil
	}
	if p.stopCh != nil {
		close(p.stopCh)
		p.stopCh = nil
	}
}

func (p *selfPinger) onSoftTimeout(gen uint64) []event {
	if gen != p.gen || p.stopCh != nil || p.r.state != mucmodel.Active {
		return nil
	}
	localJID := p.r.disp.LocalJID()
	if localJID == nil {
		return nil
	}
	p.stopCh = make(chan struct{})
	go p.loop(gen, localJID, p.r.occupantJID(), p.stopCh)
	return nil
}

func (p *selfPinger) onHardTimeout(gen uint64) []event {
	if gen != p.gen {
		return nil
	}
	if p.stale {
		return p.r.exit(mucmodel.LeaveError, "", "", nil)
	}
	p.hardExpired = true
	return nil
}

func (p *selfPinger) onPingResult(gen uint64, err error) []event {
	if gen != p.gen || p.r.state != mucmodel.Active {
		return nil
	}
	switch {
	case err == nil, errors.Is(err, stream.ErrServiceUnavailable), errors.Is(err, stream.ErrFeatureNotImplemented):
		return p.touch()

	case errors.Is(err, stream.ErrNotAcceptable), errors.Is(err, stream.ErrItemNotFound):
		level.Info(p.r.logger).Log("msg", "no longer joined to room", "err", err)
		return p.r.exit(mucmodel.LeaveError, "", "", nil)
	}
	if p.hardExpired {
		return p.r.exit(mucmodel.LeaveError, "", "", nil)
	}
	if p.stale {
		return nil
	}
	p.stale = true
	reportLiveness("stale")
	level.Info(p.r.logger).Log("msg", "room is stale", "err", err)

	return []event{{name: hook.MUCRoomStale, inf: &hook.MUCRoomInfo{
		RoomJID: p.r.roomJID,
		Self:    p.r.self,
	}}}
}

func (p *selfPinger) loop(gen uint64, localJID, occJID *jid.JID, stopCh <-chan struct{}) {
	tc := time.NewTicker(p.cfg.PingInterval)
	defer tc.Stop()

	for {
		go p.ping(gen, localJID, occJID)

		select {
		case <-tc.C:
		case <-stopCh:
			return
		}
	}
}

// ping runs off the room queue.
func (p *selfPinger) ping(gen uint64, localJID, occJID *jid.JID) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PingTimeout)
	defer cancel()

	t0 := time.Now()
	iq, err := xmpputil.MakeIQ(stravaganza.GetType, localJID, occJID, pingElement())
	if err == nil {
		_, err = p.r.disp.SendIQ(ctx, iq)
	}
	reportSelfPing(pingResult(err), time.Since(t0).Seconds())

	p.r.process(context.Background(), func() []event { return p.onPingResult(gen, err) })
}

func pingResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, stream.ErrRequestTimeout):
		return "timeout"
	}
	return "error"
}
