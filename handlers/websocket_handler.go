package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/fantaleague/auction-system/middleware"
	"github.com/fantaleague/auction-system/realtime"
	"github.com/fantaleague/auction-system/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// В продакшене здесь должна быть проверка Origin по списку
		// доверенных доменов.
		return true
	},
}

type WebSocketHandler struct {
	hub          *realtime.Hub
	timerService *services.TimerService
	logger       *slog.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, timers *services.TimerService, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		timerService: timers,
		logger:       logger,
	}
}

// ServeLeague подключает клиента к комнате лиги: сюда летят события
// лотов (создание, смена цены и лидера, закрытие).
func (h *WebSocketHandler) ServeLeague(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.serve(w, r, realtime.LeagueRoom(leagueID))
}

// ServeUser подключает клиента к его личной комнате с адресными
// уведомлениями ("перебили", "сработала авто-ставка").
func (h *WebSocketHandler) ServeUser(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	h.serve(w, r, realtime.UserRoom(currentUserID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string) {
	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader сам отвечает клиенту HTTP-ошибкой
		h.logger.Error("websocket upgrade failed",
			slog.String("room", room),
			slog.String("error", err.Error()),
		)
		return
	}

	client := &realtime.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: room,
	}
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// Подключение — это появление онлайн: у ожидающих таймеров ответа
	// начинает идти отсчёт.
	if _, err := h.timerService.ActivatePresence(r.Context(), currentUserID); err != nil {
		h.logger.Error("failed to activate presence on websocket connect",
			slog.Int("user_id", currentUserID),
			slog.String("error", err.Error()),
		)
	}
}
