package handlers

import (
	"net/http"
	"strconv"

	"github.com/fantaleague/auction-system/middleware"
	"github.com/fantaleague/auction-system/models"
	"github.com/fantaleague/auction-system/services"
)

// bidKind — пустая строка означает обычную ставку; валидацию значения
// делает сервис.
func bidKind(raw string) models.BidKind {
	return models.BidKind(raw)
}

type AuctionHandler struct {
	bidService    *services.BidService
	timerService  *services.TimerService
	budgetService *services.BudgetService
}

func NewAuctionHandler(bids *services.BidService, timers *services.TimerService, budget *services.BudgetService) *AuctionHandler {
	return &AuctionHandler{
		bidService:    bids,
		timerService:  timers,
		budgetService: budget,
	}
}

// PlaceBid godoc
// @Summary Поставить на игрока
// @Tags auction
// @Description Ставка по открытому лоту; если лота нет, ставка открывает его. Ответ — состояние лота после каскада авто-ставок.
// @Accept json
// @Produce json
// @Param leagueID path int true "League ID"
// @Param playerID path int true "Player ID"
// @Success 200 {object} map[string]interface{} "Снимок лота"
// @Failure 400 {object} map[string]string "Ошибка валидации или бизнес-правила"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 404 {object} map[string]string "Лига или игрок не найдены"
// @Failure 409 {object} map[string]string "Ставка уже обрабатывается"
// @Security BearerAuth
// @Router /leagues/{leagueID}/players/{playerID}/bids [post]
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		Amount  int64  `json:"amount"`
		Kind    string `json:"kind"`
		Ceiling *int64 `json:"ceiling"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snap, err := h.bidService.PlaceBid(r.Context(), leagueID, playerID, currentUserID, input.Amount, bidKind(input.Kind), input.Ceiling)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"lot": snap}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// StartLot godoc
// @Summary Открыть лот стартовой ставкой
// @Tags auction
// @Accept json
// @Produce json
// @Param leagueID path int true "League ID"
// @Param playerID path int true "Player ID"
// @Success 201 {object} map[string]interface{} "Снимок лота"
// @Failure 400 {object} map[string]string "Ошибка валидации или бизнес-правила"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 409 {object} map[string]string "Лот уже существует"
// @Security BearerAuth
// @Router /leagues/{leagueID}/players/{playerID}/lot [post]
func (h *AuctionHandler) StartLot(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		Amount  int64  `json:"amount"`
		Ceiling *int64 `json:"ceiling"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snap, err := h.bidService.StartLot(r.Context(), leagueID, playerID, currentUserID, input.Amount, input.Ceiling)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"lot": snap}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetLot godoc
// @Summary Текущее состояние лота
// @Tags auction
// @Produce json
// @Param leagueID path int true "League ID"
// @Param playerID path int true "Player ID"
// @Success 200 {object} map[string]interface{} "Снимок лота и последние ставки"
// @Failure 404 {object} map[string]string "Открытого лота нет"
// @Security BearerAuth
// @Router /leagues/{leagueID}/players/{playerID}/lot [get]
func (h *AuctionHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snap, bids, err := h.bidService.LotState(r.Context(), leagueID, playerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"lot": snap, "bids": bids}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Respond godoc
// @Summary Ответ на перебитую ставку
// @Tags auction
// @Description action=bid перебивает минимальным шагом, action=fold уступает лот и включает кулдаун.
// @Accept json
// @Produce json
// @Param leagueID path int true "League ID"
// @Param playerID path int true "Player ID"
// @Success 200 {object} map[string]interface{} "Результат ответа"
// @Failure 400 {object} map[string]string "Неизвестное действие"
// @Failure 404 {object} map[string]string "Нет ожидающего таймера"
// @Security BearerAuth
// @Router /leagues/{leagueID}/players/{playerID}/response [post]
func (h *AuctionHandler) Respond(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		Action string `json:"action"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	snap, err := h.timerService.Respond(r.Context(), leagueID, playerID, currentUserID, input.Action)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	body := jsonResponse{"action": input.Action}
	if snap != nil {
		body["lot"] = snap
	}
	if err := writeJSON(w, http.StatusOK, body, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ActivatePresence godoc
// @Summary Отметиться онлайн
// @Tags auction
// @Description Активирует все ожидающие таймеры ответа пользователя: с этого момента у них идёт отсчёт.
// @Produce json
// @Success 200 {object} map[string]interface{} "Число активированных таймеров"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Security BearerAuth
// @Router /presence [post]
func (h *AuctionHandler) ActivatePresence(w http.ResponseWriter, r *http.Request) {
	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	activated, err := h.timerService.ActivatePresence(r.Context(), currentUserID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"activated_timers": activated}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBudget godoc
// @Summary Бюджет участника
// @Tags budget
// @Produce json
// @Param leagueID path int true "League ID"
// @Success 200 {object} map[string]interface{} "Бюджет"
// @Failure 400 {object} map[string]string "Не участник лиги"
// @Security BearerAuth
// @Router /leagues/{leagueID}/budget [get]
func (h *AuctionHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	view, err := h.budgetService.View(r.Context(), currentUserID, leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"budget": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetLedger godoc
// @Summary История списаний участника
// @Tags budget
// @Produce json
// @Param leagueID path int true "League ID"
// @Param limit query int false "Максимум записей (по умолчанию 50)"
// @Success 200 {object} map[string]interface{} "Записи леджера"
// @Failure 400 {object} map[string]string "Не участник лиги"
// @Security BearerAuth
// @Router /leagues/{leagueID}/ledger [get]
func (h *AuctionHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	currentUserID, ok := middleware.CurrentUserID(r.Context())
	if !ok {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	entries, err := h.budgetService.History(r.Context(), currentUserID, leagueID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"ledger": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
