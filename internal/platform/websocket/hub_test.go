package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newClient(id string, topics ...string) *Client {
	return &Client{ID: id, Topics: topics, Send: make(chan []byte, 16)}
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatalf("client %s did not receive event", c.ID)
	}
	return Event{}
}

func TestCalendarTopic(t *testing.T) {
	if got := CalendarTopic(civil.Date{Year: 2024, Month: 1, Day: 5}); got != "calendar/2024-01-05" {
		t.Errorf("unexpected topic %q", got)
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c1", TopicSessions)

	hub.Register(client)
	if hub.ClientCount() != 1 || hub.TopicCount(TopicSessions) != 1 {
		t.Fatalf("expected one registered client, got %d/%d", hub.ClientCount(), hub.TopicCount(TopicSessions))
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount(TopicSessions) != 0 {
		t.Fatal("expected client to be removed")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed after unregister")
	}
}

func TestHub_RegisterDeduplicatesTopics(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c1", "calendar/2024-01-15", TopicSessions, "calendar/2024-01-15")

	hub.Register(client)
	if len(client.Topics) != 2 || client.Topics[0] != "calendar/2024-01-15" || client.Topics[1] != TopicSessions {
		t.Fatalf("expected topics in first-seen order without repeats, got %v", client.Topics)
	}

	hub.Publish(context.Background(), Event{Type: EventSessionsChanged, Topic: "calendar/2024-01-15"})
	receive(t, client)
	select {
	case <-client.Send:
		t.Fatal("expected a single delivery per event")
	default:
	}
}

func TestUniqueTopics(t *testing.T) {
	got := uniqueTopics([]string{"a", "b", "a", "c", "b"})
	if strings.Join(got, ",") != "a,b,c" {
		t.Errorf("unexpected topics %v", got)
	}
	if got := uniqueTopics(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func TestHub_PublishToTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	day := CalendarTopic(civil.Date{Year: 2024, Month: 1, Day: 15})
	subscriber := newClient("sub", day)
	other := newClient("other", CalendarTopic(civil.Date{Year: 2024, Month: 1, Day: 16}))
	hub.Register(subscriber)
	hub.Register(other)

	hub.Publish(context.Background(), Event{Type: EventSessionsChanged, Topic: day, Action: "created", SessionIDs: []string{"a"}})

	ev := receive(t, subscriber)
	if ev.Type != EventSessionsChanged || ev.Action != "created" || len(ev.SessionIDs) != 1 {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.Timestamp.IsZero() {
		t.Error("expected publish to stamp the event")
	}
	select {
	case <-other.Send:
		t.Fatal("non-subscriber should not have received event")
	default:
	}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c1")
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{TopicSessions, TopicSessions, "calendar/2024-01-15"}})
	if len(client.Topics) != 2 || hub.TopicCount(TopicSessions) != 1 {
		t.Fatalf("expected de-duplicated subscriptions, got %v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{TopicSessions}})
	if hub.TopicCount(TopicSessions) != 0 || len(client.Topics) != 1 || client.Topics[0] != "calendar/2024-01-15" {
		t.Errorf("unexpected topics after unsubscribe %v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "shout"})
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{ID: "slow", Topics: []string{TopicSessions}, Send: make(chan []byte, 1)}
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			hub.Broadcast(TopicSessions, Event{Type: EventSessionsChanged})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := newClient("c", TopicSessions)
			hub.Register(c)
			hub.Broadcast(TopicSessions, Event{Type: EventSessionsChanged})
			hub.Unregister(c)
		}()
	}
	wg.Wait()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestNopPublisher(t *testing.T) {
	var p EventPublisher = NopPublisher{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub, nil).RegisterRoutes(e.Group("/api/v1"))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?topics=calendar/2024-01-15"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount("calendar/2024-01-15") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(context.Background(), Event{Type: EventSessionsChanged, Topic: "calendar/2024-01-15"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Topic != "calendar/2024-01-15" {
		t.Errorf("unexpected topic %q", ev.Topic)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub, []string{"https://clinic.example"}).RegisterRoutes(e.Group(""))
	srv := httptest.NewServer(e)
	defer srv.Close()

	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, _, err := gorillawebsocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
	if err == nil {
		t.Fatal("expected handshake to fail for a foreign origin")
	}
}
