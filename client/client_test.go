/*
 * Copyright 2025 The Zync Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package client_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	gotime "time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zync-dev/zync/client"
	"github.com/zync-dev/zync/pkg/document"
	"github.com/zync-dev/zync/pkg/document/time"
	"github.com/zync-dev/zync/server/backend"
	"github.com/zync-dev/zync/server/profiling/prometheus"
	"github.com/zync-dev/zync/server/relay"
)

const (
	waitFor = 5 * gotime.Second
	tick    = 10 * gotime.Millisecond
)

func newTestRelay(t *testing.T) *httptest.Server {
	t.Helper()

	metrics, err := prometheus.NewMetrics("test-node")
	require.NoError(t, err)

	be, err := backend.New(&backend.Config{PresenceStaleThreshold: "1m"}, nil, metrics)
	require.NoError(t, err)

	relayServer, err := relay.NewServer(&relay.Config{
		Port:            8080,
		PingInterval:    "25s",
		MaxMessageBytes: 1 << 20,
	}, be)
	require.NoError(t, err)

	testServer := httptest.NewServer(relayServer.Handler())
	t.Cleanup(func() {
		testServer.Close()
		assert.NoError(t, be.Shutdown())
	})
	return testServer
}

func newTestProvider(
	t *testing.T,
	addr, noteKey, userID string,
) *client.Provider {
	t.Helper()

	provider := client.NewProvider(
		addr,
		document.New(noteKey),
		client.WithUser(userID, "user "+userID, ""),
		client.WithReconnectInterval(50*gotime.Millisecond),
	)
	require.NoError(t, provider.Connect(context.Background()))
	t.Cleanup(provider.Destroy)
	return provider
}

func TestProvider(t *testing.T) {
	t.Run("status test", func(t *testing.T) {
		testServer := newTestRelay(t)

		provider := client.NewProvider(testServer.URL, document.New("doc-status"))
		assert.Equal(t, client.StatusDisconnected, provider.Status())

		require.NoError(t, provider.Connect(context.Background()))
		assert.Equal(t, client.StatusConnected, provider.Status())

		provider.Destroy()
		assert.Equal(t, client.StatusDestroyed, provider.Status())
		assert.ErrorIs(t, provider.Connect(context.Background()), client.ErrProviderDestroyed)

		// Destroy is idempotent.
		provider.Destroy()
	})

	t.Run("edit convergence test", func(t *testing.T) {
		testServer := newTestRelay(t)
		p1 := newTestProvider(t, testServer.URL, "doc-1", "u1")
		p2 := newTestProvider(t, testServer.URL, "doc-1", "u2")

		_, err := p1.Document().InsertBlockAfter(time.InitialTicket, "paragraph", "hello", nil)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return p2.Document().Len() == 1 &&
				p1.Document().Marshal() == p2.Document().Marshal()
		}, waitFor, tick)
	})

	t.Run("late joiner bootstrap test", func(t *testing.T) {
		testServer := newTestRelay(t)
		p1 := newTestProvider(t, testServer.URL, "doc-2", "u1")

		id, err := p1.Document().InsertBlockAfter(time.InitialTicket, "heading", "title", nil)
		require.NoError(t, err)
		require.NoError(t, p1.Document().EditBlock(id, "heading", "final title", nil))

		// The second session opens the note after the edits happened.
		p2 := newTestProvider(t, testServer.URL, "doc-2", "u2")

		require.Eventually(t, func() bool {
			return p1.Document().Marshal() == p2.Document().Marshal() &&
				p2.Document().Len() == 1
		}, waitFor, tick)
	})

	t.Run("presence roster test", func(t *testing.T) {
		testServer := newTestRelay(t)
		p1 := newTestProvider(t, testServer.URL, "doc-3", "u1")
		p2 := newTestProvider(t, testServer.URL, "doc-3", "u2")

		require.Eventually(t, func() bool {
			users := p1.ActiveUsers()
			return len(users) == 1 && users[0].ID == "u2"
		}, waitFor, tick)
		require.Eventually(t, func() bool {
			users := p2.ActiveUsers()
			return len(users) == 1 && users[0].ID == "u1"
		}, waitFor, tick)

		// The roster never contains the local user.
		for _, user := range p1.ActiveUsers() {
			assert.NotEqual(t, "u1", user.ID)
		}
	})

	t.Run("cursor position test", func(t *testing.T) {
		testServer := newTestRelay(t)
		p1 := newTestProvider(t, testServer.URL, "doc-4", "u1")
		p2 := newTestProvider(t, testServer.URL, "doc-4", "u2")

		require.Eventually(t, func() bool {
			return len(p2.ActiveUsers()) == 1
		}, waitFor, tick)

		p1.UpdateCursorPosition("block-7")

		require.Eventually(t, func() bool {
			user, ok := p2.UserForBlock("block-7")
			return ok && user.ID == "u1"
		}, waitFor, tick)
	})

	t.Run("leave clears presence test", func(t *testing.T) {
		testServer := newTestRelay(t)
		p1 := newTestProvider(t, testServer.URL, "doc-5", "u1")
		p2 := newTestProvider(t, testServer.URL, "doc-5", "u2")

		require.Eventually(t, func() bool {
			return len(p1.ActiveUsers()) == 1
		}, waitFor, tick)

		p2.Destroy()

		require.Eventually(t, func() bool {
			return len(p1.ActiveUsers()) == 0
		}, waitFor, tick)
	})

	t.Run("reconnect rejoin test", func(t *testing.T) {
		testServer := newTestRelay(t)
		p1 := newTestProvider(t, testServer.URL, "doc-6", "u1")
		p2 := newTestProvider(t, testServer.URL, "doc-6", "u2")

		_, err := p1.Document().InsertBlockAfter(time.InitialTicket, "paragraph", "before drop", nil)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			return p2.Document().Len() == 1 && len(p2.ActiveUsers()) == 1
		}, waitFor, tick)

		// Kill every live socket; both providers redial and rejoin.
		testServer.CloseClientConnections()

		require.Eventually(t, func() bool {
			return p1.Status() == client.StatusConnected &&
				p2.Status() == client.StatusConnected
		}, waitFor, tick)

		// Rejoining must not leave a duplicate roster entry behind.
		require.Eventually(t, func() bool {
			users := p2.ActiveUsers()
			return len(users) == 1 && users[0].ID == "u1"
		}, waitFor, tick)

		// Edits made after the rejoin still reach the peer.
		_, err = p1.Document().InsertBlockAfter(time.InitialTicket, "paragraph", "after rejoin", nil)
		require.NoError(t, err)
		require.Eventually(t, func() bool {
			return p2.Document().Len() == 2 &&
				p1.Document().Marshal() == p2.Document().Marshal()
		}, waitFor, tick)
	})

	t.Run("cursor while disconnected test", func(t *testing.T) {
		provider := client.NewProvider(
			"localhost:1",
			document.New("doc-offline"),
			client.WithUser("u1", "one", ""),
		)
		t.Cleanup(provider.Destroy)

		// Nothing to assert beyond it not blocking or panicking.
		provider.UpdateCursorPosition("block-1")
		assert.Equal(t, client.StatusDisconnected, provider.Status())
	})
}

// renderEditor records the latest rendered blocks.
type renderEditor struct {
	mu     sync.Mutex
	blocks []document.BlockSnapshot
}

func (e *renderEditor) Render(blocks []document.BlockSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocks = blocks
}

func (e *renderEditor) len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.blocks)
}

func TestBinding(t *testing.T) {
	t.Run("bind and render test", func(t *testing.T) {
		testServer := newTestRelay(t)

		editor := &renderEditor{}
		binding, err := client.Bind(
			context.Background(), testServer.URL, "bind-1", editor,
			client.WithUser("u1", "one", ""),
		)
		require.NoError(t, err)
		t.Cleanup(binding.Close)

		id, err := binding.InsertBlockAfter("", "paragraph", "hello", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.Equal(t, 1, editor.len())

		require.NoError(t, binding.EditBlock(id, "paragraph", "hello!", nil))
		require.NoError(t, binding.DeleteBlock(id))
		assert.Equal(t, 0, editor.len())
	})

	t.Run("remote render test", func(t *testing.T) {
		testServer := newTestRelay(t)

		editor := &renderEditor{}
		binding, err := client.Bind(
			context.Background(), testServer.URL, "bind-2", editor,
			client.WithUser("u1", "one", ""),
		)
		require.NoError(t, err)
		t.Cleanup(binding.Close)

		p2 := newTestProvider(t, testServer.URL, "bind-2", "u2")
		_, err = p2.Document().InsertBlockAfter(time.InitialTicket, "paragraph", "remote", nil)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return editor.len() == 1
		}, waitFor, tick)
	})

	t.Run("one binding per note test", func(t *testing.T) {
		testServer := newTestRelay(t)

		binding, err := client.Bind(
			context.Background(), testServer.URL, "bind-3", &renderEditor{},
			client.WithUser("u1", "one", ""),
		)
		require.NoError(t, err)

		_, err = client.Bind(
			context.Background(), testServer.URL, "bind-3", &renderEditor{},
			client.WithUser("u2", "two", ""),
		)
		assert.ErrorIs(t, err, client.ErrNoteAlreadyBound)

		// Closing releases the note for a later binding.
		binding.Close()
		rebound, err := client.Bind(
			context.Background(), testServer.URL, "bind-3", &renderEditor{},
			client.WithUser("u1", "one", ""),
		)
		require.NoError(t, err)
		rebound.Close()
	})

	t.Run("invalid block id test", func(t *testing.T) {
		testServer := newTestRelay(t)

		binding, err := client.Bind(
			context.Background(), testServer.URL, "bind-4", &renderEditor{},
			client.WithUser("u1", "one", ""),
		)
		require.NoError(t, err)
		t.Cleanup(binding.Close)

		_, err = binding.InsertBlockAfter("garbage", "paragraph", "x", nil)
		assert.ErrorIs(t, err, time.ErrInvalidTicket)
	})
}
