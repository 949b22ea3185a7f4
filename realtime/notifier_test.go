package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fantaleague/auction-system/models"
)

func newTestHubClient(t *testing.T, room string) (*Hub, *Client) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()

	client := &Client{
		Hub:  hub,
		Send: make(chan []byte, 32),
		Room: room,
	}
	hub.Register <- client
	// Register обрабатывается горутиной хаба
	time.Sleep(20 * time.Millisecond)
	return hub, client
}

func receiveMessage(t *testing.T, client *Client) WebSocketMessage {
	t.Helper()
	select {
	case raw := <-client.Send:
		var msg WebSocketMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no websocket message received")
		return WebSocketMessage{}
	}
}

func snapshot(lotID int, price int64, leader int) *models.LotSnapshot {
	return &models.LotSnapshot{
		LotID:           lotID,
		LeagueID:        1,
		PlayerID:        10,
		Status:          models.LotStatusActive,
		CurrentPrice:    price,
		CurrentLeaderID: &leader,
	}
}

func TestHubNotifierSuppressesDuplicatesWithinWindow(t *testing.T) {
	_, client := newTestHubClient(t, LeagueRoom(1))
	hub := client.Hub

	n, err := NewHubNotifier(hub, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	n.LotUpdated(snapshot(5, 20, 100))
	n.LotUpdated(snapshot(5, 20, 100)) // тот же отпечаток — гасится
	n.LotUpdated(snapshot(5, 21, 100)) // новая цена проходит

	first := receiveMessage(t, client)
	assert.Equal(t, MessageLotUpdated, first.Type)

	second := receiveMessage(t, client)
	assert.Equal(t, MessageLotUpdated, second.Type)

	select {
	case <-client.Send:
		t.Fatal("duplicate message was not suppressed")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNotifierAnnouncesLotOnce(t *testing.T) {
	_, client := newTestHubClient(t, LeagueRoom(1))

	// короткое окно: ко второму вызову TTL-запись уже истекла, повтор
	// гасится только множеством уже анонсированных лотов
	n, err := NewHubNotifier(client.Hub, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	n.LotCreated(snapshot(5, 10, 100))
	time.Sleep(30 * time.Millisecond)
	n.LotCreated(snapshot(5, 10, 100))

	msg := receiveMessage(t, client)
	assert.Equal(t, MessageLotCreated, msg.Type)

	select {
	case <-client.Send:
		t.Fatal("LOT_CREATED broadcast twice for the same lot")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNotifierClampsTinyDedupWindow(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	// окно меньше миллисекунды не должно ронять тикер очистки кэша
	n, err := NewHubNotifier(hub, time.Nanosecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	n.LotUpdated(snapshot(1, 10, 100))
}

func TestHubNotifierRoutesPersonalEvents(t *testing.T) {
	_, leagueClient := newTestHubClient(t, LeagueRoom(1))
	hub := leagueClient.Hub

	userClient := &Client{Hub: hub, Send: make(chan []byte, 32), Room: UserRoom(42)}
	hub.Register <- userClient
	time.Sleep(20 * time.Millisecond)

	n, err := NewHubNotifier(hub, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	n.BidSurpassed(1, 10, 42)

	msg := receiveMessage(t, userClient)
	assert.Equal(t, MessageBidSurpassed, msg.Type)
	assert.Equal(t, UserRoom(42), msg.Room)

	// в комнату лиги личное уведомление не попадает
	select {
	case <-leagueClient.Send:
		t.Fatal("personal event leaked into the league room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNotifierSkipsSlowClientWithoutBlocking(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run()

	slow := &Client{Hub: hub, Send: make(chan []byte), Room: LeagueRoom(1)}
	hub.Register <- slow
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		hub.BroadcastToRoom(LeagueRoom(1), WebSocketMessage{Type: MessageLotUpdated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
