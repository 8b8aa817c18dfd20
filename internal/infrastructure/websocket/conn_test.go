package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"StoryStream/internal/domain"
)

type wireEvent struct {
	Type string `json:"type"`
	Data struct {
		Count         int             `json:"count"`
		TotalNewCount int             `json:"totalNewCount"`
		Records       []domain.Record `json:"records"`
	} `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnWritesEventsAsJSON(t *testing.T) {
	t.Parallel()

	served := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, Options{PingPeriod: time.Second})
		if err != nil {
			return
		}
		defer close(served)
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.WriteEvent(ctx, domain.NewInitialCountEvent(3))
		_ = conn.WriteEvent(ctx, domain.NewRecordsEvent(domain.Delta{Records: []domain.Record{
			{ID: 1, Title: "A", Link: "x"},
			{ID: 2, Title: "B", Link: "y"},
		}}, 1))
		conn.Serve()
	}))
	defer srv.Close()

	client := dial(t, srv)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first wireEvent
	if err := client.ReadJSON(&first); err != nil {
		t.Fatalf("read initialCount: %v", err)
	}
	if first.Type != "initialCount" || first.Data.Count != 3 {
		t.Fatalf("unexpected first event %+v", first)
	}

	var second wireEvent
	if err := client.ReadJSON(&second); err != nil {
		t.Fatalf("read newRecords: %v", err)
	}
	if second.Type != "newRecords" || second.Data.TotalNewCount != 2 || len(second.Data.Records) != 1 {
		t.Fatalf("unexpected second event %+v", second)
	}

	if err := client.WriteMessage(gws.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write inbound: %v", err)
	}
	_ = client.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatalf("Serve did not return after client close")
	}
}

func TestConnWriteAfterCloseFails(t *testing.T) {
	t.Parallel()

	result := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r, Options{})
		if err != nil {
			result <- err
			return
		}
		if conn.ID() == "" {
			result <- errors.New("empty id")
			return
		}
		_ = conn.Close()
		_ = conn.Close()
		result <- conn.WriteEvent(context.Background(), domain.NewInitialCountEvent(0))
	}))
	defer srv.Close()

	dial(t, srv)

	select {
	case err := <-result:
		if !errors.Is(err, domain.ErrDelivery) {
			t.Fatalf("expected ErrDelivery, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler did not finish")
	}
}

func TestUpgradeRejectsPlainHTTP(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if _, err := Upgrade(rec, req, Options{}); err == nil {
		t.Fatalf("expected upgrade error")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
