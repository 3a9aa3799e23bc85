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
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/jackal-xmpp/stravaganza/v2/jid"
	"github.com/ortuman/jackal-client/pkg/config"
	"github.com/ortuman/jackal-client/pkg/hook"
	rostermodel "github.com/ortuman/jackal-client/pkg/model/roster"
	"github.com/ortuman/jackal-client/pkg/roster"
	"github.com/ortuman/jackal-client/pkg/storage"
	"github.com/ortuman/jackal-client/pkg/storage/boltdb"
	"github.com/ortuman/jackal-client/pkg/stream"
	xmpputil "github.com/ortuman/jackal-client/pkg/util/xmpp"
	"github.com/stretchr/testify/require"
)

const (
	rosterNamespace    = "jabber:iq:roster"
	rosterVerNamespace = "urn:xmpp:features:rosterver"
)

func TestClient_RosterCache(t *testing.T) {
	// given
	cfg := testConfig(filepath.Join(t.TempDir(), "cache.db"))
	localJID, _ := jid.NewWithString("ortuman@jackal.im/yard", true)

	c1 := setupClient(t, cfg, func(iq *stravaganza.IQ) *stravaganza.IQ {
		return xmpputil.MakeResultIQ(iq, rosterQuery("v1",
			rosterItem("noelia@jackal.im", "Noelia", rostermodel.Both, "friends"),
		))
	})
	require.NoError(t, c1.Dispatcher().StreamEstablished(context.Background(), localJID, rosterFeatures()))
	require.Len(t, c1.Roster().Items(), 1)
	require.NoError(t, c1.Stop(context.Background()))

	var requestedVer string
	c2 := setupClient(t, cfg, func(iq *stravaganza.IQ) *stravaganza.IQ {
		requestedVer = iq.ChildNamespace("query", rosterNamespace).Attribute("ver")
		// roster unchanged since requested version
		return xmpputil.MakeResultIQ(iq, nil)
	})
	defer func() { _ = c2.Stop(context.Background()) }()

	var initialReceived int
	c2.Hooks().AddHook(hook.RosterInitialReceived, func(_ context.Context, _ *hook.ExecutionContext) error {
		initialReceived++
		return nil
	}, hook.DefaultPriority)

	// when
	err := c2.Dispatcher().StreamEstablished(context.Background(), localJID, rosterFeatures())

	// then
	require.NoError(t, err)
	require.Equal(t, "v1", requestedVer)
	require.Equal(t, 1, initialReceived)

	items := c2.Roster().Items()
	require.Len(t, items, 1)
	require.Equal(t, "Noelia", items[0].Name())
	require.Equal(t, []string{"friends"}, c2.Roster().Groups())
	require.Equal(t, "v1", c2.Roster().Version())
}

func TestClient_StoreOnStreamEnded(t *testing.T) {
	// given
	cfg := testConfig(filepath.Join(t.TempDir(), "cache.db"))
	localJID, _ := jid.NewWithString("ortuman@jackal.im/yard", true)

	c := setupClient(t, cfg, func(iq *stravaganza.IQ) *stravaganza.IQ {
		if iq.IsGet() {
			return xmpputil.MakeResultIQ(iq, rosterQuery("v1"))
		}
		return xmpputil.MakeResultIQ(iq, nil)
	})
	require.NoError(t, c.Dispatcher().StreamEstablished(context.Background(), localJID, nil))

	push := makeIQ(t, stravaganza.SetType, localJID.ToBareJID(), localJID, rosterQuery("v2",
		rosterItem("romeo@jackal.im", "Romeo", rostermodel.To),
	))
	require.NoError(t, c.Dispatcher().Dispatch(context.Background(), push))

	// when
	err := c.Dispatcher().StreamEnded(context.Background())

	// then
	require.NoError(t, err)
	require.NoError(t, c.Stop(context.Background()))

	rep := boltdb.New(cfg.Storage.BoltDB, kitlog.NewNopLogger())
	require.NoError(t, rep.Start(context.Background()))
	defer func() { _ = rep.Stop(context.Background()) }()

	doc, err := rep.FetchRoster(context.Background(), "ortuman@jackal.im")
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "v2", doc.Ver)
	require.Equal(t, rostermodel.To, doc.Items["romeo@jackal.im"].Subscription)
}

func TestClient_StorageDisabled(t *testing.T) {
	// given
	cfg := testConfig("")
	cfg.Storage.Enabled = false

	localJID, _ := jid.NewWithString("ortuman@jackal.im/yard", true)
	c := setupClient(t, cfg, func(iq *stravaganza.IQ) *stravaganza.IQ {
		return xmpputil.MakeResultIQ(iq, rosterQuery("v1",
			rosterItem("noelia@jackal.im", "Noelia", rostermodel.Both),
		))
	})

	// when
	err := c.Dispatcher().StreamEstablished(context.Background(), localJID, nil)

	// then
	require.NoError(t, err)
	require.Len(t, c.Roster().Items(), 1)
	require.Nil(t, c.cache)
	require.Empty(t, c.MUC().Rooms())
	require.NoError(t, c.Stop(context.Background()))
}

func TestClient_Load(t *testing.T) {
	// given
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("logger:\n  level: off\nstorage:\n  enabled: false\n  boltdb:\n    path: %s\n", filepath.Join(dir, "cache.db"))
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	// when
	c, err := Load(file, &senderMock{})

	// then
	require.NoError(t, err)
	require.NotNil(t, c.Roster())
	require.NotNil(t, c.MUC())
	require.Nil(t, c.cache)
}

func TestClient_LoadMissingFile(t *testing.T) {
	// when
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), &senderMock{})

	// then
	require.Error(t, err)
}

func TestHTTPServer_Metrics(t *testing.T) {
	// given
	srv := newHTTPServer(0, kitlog.NewNopLogger())
	require.NoError(t, srv.Start(context.Background()))
	defer func() { _ = srv.Stop(context.Background()) }()

	// when
	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.addr()))

	// then
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), "go_goroutines"))
}

func setupClient(t *testing.T, cfg *config.Config, respond func(iq *stravaganza.IQ) *stravaganza.IQ) *Client {
	t.Helper()

	var c *Client
	sender := &senderMock{}
	sender.SendElementFunc = func(ctx context.Context, elem stravaganza.Element) error {
		iq, ok := elem.(*stravaganza.IQ)
		if !ok || !(iq.IsGet() || iq.IsSet()) {
			return nil
		}
		if resp := respond(iq); resp != nil {
			_ = c.Dispatcher().Dispatch(ctx, resp)
		}
		return nil
	}
	c = New(cfg, sender, kitlog.NewNopLogger())
	require.NoError(t, c.Start(context.Background()))
	return c
}

func testConfig(dbPath string) *config.Config {
	return &config.Config{
		Stream: stream.Config{RequestTimeout: time.Second},
		Roster: roster.Config{RequestTimeout: time.Second, Versioning: true},
		Storage: storage.Config{
			Enabled: true,
			BoltDB:  boltdb.Config{Path: dbPath},
		},
	}
}

func rosterFeatures() stravaganza.Element {
	return stravaganza.NewBuilder("features").
		WithChild(stravaganza.NewBuilder("ver").
			WithAttribute(stravaganza.Namespace, rosterVerNamespace).
			Build(),
		).
		Build()
}

func rosterQuery(ver string, items ...stravaganza.Element) stravaganza.Element {
	return stravaganza.NewBuilder("query").
		WithAttribute(stravaganza.Namespace, rosterNamespace).
		WithAttribute("ver", ver).
		WithChildren(items...).
		Build()
}

func rosterItem(jidStr, name, subscription string, groups ...string) stravaganza.Element {
	b := stravaganza.NewBuilder("item").
		WithAttribute("jid", jidStr).
		WithAttribute("name", name).
		WithAttribute("subscription", subscription)
	for _, group := range groups {
		b.WithChild(stravaganza.NewBuilder("group").
			WithText(group).
			Build(),
		)
	}
	return b.Build()
}

func makeIQ(t *testing.T, typ string, from, to *jid.JID, child stravaganza.Element) *stravaganza.IQ {
	t.Helper()
	iq, err := xmpputil.MakeIQ(typ, from, to, child)
	require.NoError(t, err)
	return iq
}
