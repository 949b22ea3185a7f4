package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурсы
	ErrLeagueNotFound = errors.New("league not found")
	ErrPlayerNotFound = errors.New("player not found")
	ErrLotNotFound    = errors.New("lot not found")
	ErrTimerNotFound  = errors.New("no pending response timer for this player")

	// Ошибки валидации и бизнес-правил: возвращаются синхронно,
	// автоматических повторов не предполагают.
	ErrInvalidAmount     = errors.New("bid amount must be positive")
	ErrInvalidKind       = errors.New("bid kind must be manual or quick")
	ErrInvalidCeiling    = errors.New("auto-bid ceiling must be at least the bid amount")
	ErrBidTooLow         = errors.New("bid must exceed the current price")
	ErrSelfOutbid        = errors.New("manager already leads this lot")
	ErrNotLeagueMember   = errors.New("manager is not a participant of this league")
	ErrRoleNotOpen       = errors.New("player role is not open for bidding")
	ErrPlayerAssigned    = errors.New("player is already assigned to a roster")
	ErrCooldownActive    = errors.New("cooldown active for this player")
	ErrInsufficientFunds = errors.New("insufficient available credits")
	ErrRosterFull        = errors.New("no roster capacity left for this role")
	ErrInvalidAction     = errors.New("unknown respond action")

	// Ошибки конфликтов: вызывающему стоит повторить чуть позже.
	ErrBidInFlight = errors.New("a bid for this player is already in progress")
	ErrLotConflict = errors.New("lot already exists for this player")
)
