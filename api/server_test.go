package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/attoscope/eccstream/stream"
)

func newTestServer() *Server {
	snap := func() stream.Snapshot {
		return stream.Snapshot{
			RateHz:   1000,
			Captured: 42,
			RingCap:  4096,
			BusUp:    true,
		}
	}
	return NewServer(snap, NewHub(), hclog.NewNullLogger())
}

// waitFor polls cond for up to a second.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRoutes(t *testing.T) {
	srv := httptest.NewServer(newTestServer().Router())
	defer srv.Close()

	Convey("healthz answers plain ok", t, func() {
		resp, err := http.Get(srv.URL + "/healthz")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)

		body, err := io.ReadAll(resp.Body)
		So(err, ShouldBeNil)
		So(string(body), ShouldEqual, "ok")
	})

	Convey("status serves the snapshot as json", t, func() {
		resp, err := http.Get(srv.URL + "/status")
		So(err, ShouldBeNil)
		defer resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusOK)

		var snap stream.Snapshot
		So(json.NewDecoder(resp.Body).Decode(&snap), ShouldBeNil)
		So(snap.RateHz, ShouldEqual, 1000)
		So(snap.Captured, ShouldEqual, 42)
		So(snap.RingCap, ShouldEqual, 4096)
		So(snap.BusUp, ShouldBeTrue)
	})

	Convey("unknown routes are 404", t, func() {
		resp, err := http.Get(srv.URL + "/nope")
		So(err, ShouldBeNil)
		resp.Body.Close()
		So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
	})
}

func dialLive(t *testing.T, srvURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srvURL, "http") + "/live"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestLiveFeed(t *testing.T) {
	Convey("a websocket subscriber receives broadcast batches", t, func() {
		s := newTestServer()
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		conn := dialLive(t, srv.URL)
		defer conn.Close()

		waitFor(t, func() bool { return s.hub.Clients() == 1 })
		s.hub.Broadcast([]byte("1/10/NaN/NaN/NaN"))

		_, msg, err := conn.ReadMessage()
		So(err, ShouldBeNil)
		So(string(msg), ShouldEqual, "1/10/NaN/NaN/NaN")
	})

	Convey("a departed client is dropped from the hub", t, func() {
		s := newTestServer()
		srv := httptest.NewServer(s.Router())
		defer srv.Close()

		conn := dialLive(t, srv.URL)
		waitFor(t, func() bool { return s.hub.Clients() == 1 })

		conn.Close()
		waitFor(t, func() bool { return s.hub.Clients() == 0 })
	})
}

func TestShutdown(t *testing.T) {
	Convey("shutdown stops a running server and Serve returns clean", t, func() {
		s := newTestServer()
		done := make(chan error, 1)
		go func() { done <- s.Serve("127.0.0.1:0") }()

		waitFor(t, func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.http != nil
		})

		So(s.Shutdown(context.Background()), ShouldBeNil)

		select {
		case err := <-done:
			So(err, ShouldBeNil)
		case <-time.After(time.Second):
			t.Fatal("Serve did not return after Shutdown")
		}
	})

	Convey("shutdown before Serve is a no-op", t, func() {
		s := newTestServer()
		So(s.Shutdown(context.Background()), ShouldBeNil)
	})
}

func TestHub(t *testing.T) {
	Convey("broadcast to an empty hub is a no-op", t, func() {
		h := NewHub()
		h.Broadcast([]byte("x"))
		So(h.Clients(), ShouldEqual, 0)
	})

	Convey("a slow subscriber loses batches instead of blocking", t, func() {
		h := NewHub()
		conn := &websocket.Conn{}
		ch := h.add(conn)

		for i := 0; i < clientBuffer+5; i++ {
			h.Broadcast([]byte("batch"))
		}
		So(len(ch), ShouldEqual, clientBuffer)

		h.remove(conn)
		So(h.Clients(), ShouldEqual, 0)

		// remove is idempotent
		h.remove(conn)
	})
}
