/*
 *
 * brave-devtools-session - resolves a single Brave remote-debugging session
 * Copyright (C) 2025 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/brave-devtools-session/log"
	"github.com/liuxd6825/brave-devtools-session/tests/ws"
)

func TestConnection(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithEchoHandler("/echo"))

	tr, err := DialWebSocket(context.Background(), server.WSURL("/echo"))
	require.NoError(t, err)
	defer func() { _ = tr.Close() }()

	require.NoError(t, tr.Write([]byte(`{"id":1}`)))
	buf, err := tr.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(buf))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close(), "closing twice should not fail")
}

func TestConnectionClosureAbnormal(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithClosureAbnormalHandler("/closure-abnormal"))

	tr, err := DialWebSocket(context.Background(), server.WSURL("/closure-abnormal"))
	require.NoError(t, err)
	conn := NewConnection(tr, ProtocolTimeout, log.NewNullLogger())

	action := target.SetDiscoverTargets(true)
	err = action.Do(cdp.WithExecutor(context.Background(), conn))
	require.ErrorIs(t, err, ErrConnectionClosed)

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection should be done")
	}
	assert.False(t, conn.IsConnected())
}

func TestConnectionSendRecv(t *testing.T) {
	t.Parallel()

	rec := &ws.Recorder{}
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", ws.CDPDefaultHandler, rec))

	tr, err := DialWebSocket(context.Background(), server.WSURL("/cdp"))
	require.NoError(t, err)
	conn := NewConnection(tr, ProtocolTimeout, log.NewNullLogger())
	defer func() { _ = conn.Close() }()

	ctx := cdp.WithExecutor(context.Background(), conn)

	t.Run("send command with empty reply", func(t *testing.T) {
		action := target.SetDiscoverTargets(true)
		require.NoError(t, action.Do(ctx))
	})

	t.Run("send command with reply", func(t *testing.T) {
		infos, err := target.GetTargets().Do(ctx)
		require.NoError(t, err)
		assert.Len(t, infos, 5)
	})

	assert.Equal(t, []cdproto.MethodType{
		cdproto.CommandTargetSetDiscoverTargets,
		cdproto.CommandTargetGetTargets,
	}, rec.Methods())
	assert.True(t, conn.IsConnected())
}

func TestConnectionCommandError(t *testing.T) {
	t.Parallel()

	handler := func(msg *cdproto.Message, writeCh chan<- cdproto.Message, done <-chan struct{}) {
		select {
		case writeCh <- cdproto.Message{
			ID:    msg.ID,
			Error: &cdproto.Error{Code: -32601, Message: "'Target.setDiscoverTargets' wasn't found"},
		}:
		case <-done:
		}
	}
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", handler, nil))

	tr, err := DialWebSocket(context.Background(), server.WSURL("/cdp"))
	require.NoError(t, err)
	conn := NewConnection(tr, ProtocolTimeout, log.NewNullLogger())
	defer func() { _ = conn.Close() }()

	err = target.SetDiscoverTargets(true).Do(cdp.WithExecutor(context.Background(), conn))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wasn't found")

	var cerr *cdproto.Error
	assert.True(t, errors.As(err, &cerr))
}

func TestConnectionProtocolTimeout(t *testing.T) {
	t.Parallel()

	silent := func(*cdproto.Message, chan<- cdproto.Message, <-chan struct{}) {}
	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", silent, nil))

	tr, err := DialWebSocket(context.Background(), server.WSURL("/cdp"))
	require.NoError(t, err)
	conn := NewConnection(tr, 50*time.Millisecond, log.NewNullLogger())
	defer func() { _ = conn.Close() }()

	err = target.SetDiscoverTargets(true).Do(cdp.WithExecutor(context.Background(), conn))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "protocol timeout")
	assert.True(t, conn.IsConnected(), "a timed out command must not close the connection")
}

func TestConnectionClose(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithCDPHandler("/cdp", ws.CDPDefaultHandler, nil))

	tr, err := DialWebSocket(context.Background(), server.WSURL("/cdp"))
	require.NoError(t, err)
	conn := NewConnection(tr, ProtocolTimeout, log.NewNullLogger())

	_ = conn.Close()
	<-conn.Done()
	assert.False(t, conn.IsConnected())
	assert.ErrorIs(t, conn.Err(), ErrConnectionClosed)

	err = target.SetDiscoverTargets(true).Do(cdp.WithExecutor(context.Background(), conn))
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestPipeTransport(t *testing.T) {
	t.Parallel()

	// browser -> client
	inR, inW := io.Pipe()
	// client -> browser
	outR, outW := io.Pipe()

	tr := newPipeTransport(inR, outW)

	go func() {
		_, _ = inW.Write([]byte("{\"id\":1}\x00{\"method\":\"Target.targetCreated\"}\x00"))
		_ = inW.Close()
	}()

	buf, err := tr.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(buf))
	buf, err = tr.Read()
	require.NoError(t, err)
	assert.Equal(t, `{"method":"Target.targetCreated"}`, string(buf))
	_, err = tr.Read()
	assert.ErrorIs(t, err, ErrConnectionClosed)

	got := make(chan []byte, 1)
	go func() {
		b := make([]byte, 64)
		n, _ := outR.Read(b)
		got <- b[:n]
	}()
	require.NoError(t, tr.Write([]byte(`{"id":2}`)))
	assert.Equal(t, "{\"id\":2}\x00", string(<-got))

	require.NoError(t, tr.Close())
}
