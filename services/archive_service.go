package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fantaleague/auction-system/models"
	"github.com/fantaleague/auction-system/storage"
)

// ArchiveService выгружает итог каждой продажи в объектное хранилище
// как неизменяемый JSON-документ. Выгрузка строго best-effort: продажа
// уже закоммичена, ошибка архивации только логируется.
type ArchiveService struct {
	uploader storage.FileUploader
	logger   *slog.Logger
}

// NewArchiveService принимает nil-uploader: тогда архивация выключена и
// StoreSettlement превращается в no-op.
func NewArchiveService(uploader storage.FileUploader, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{uploader: uploader, logger: logger}
}

type settlementRecord struct {
	LotID               int       `json:"lot_id"`
	LeagueID            int       `json:"league_id"`
	PlayerID            int       `json:"player_id"`
	WinnerParticipantID *int      `json:"winner_participant_id"`
	FinalPrice          int64     `json:"final_price"`
	SoldAt              time.Time `json:"sold_at"`
}

func (s *ArchiveService) StoreSettlement(ctx context.Context, lot *models.Lot, soldAt time.Time) {
	if s == nil || s.uploader == nil {
		return
	}

	record := settlementRecord{
		LotID:               lot.ID,
		LeagueID:            lot.LeagueID,
		PlayerID:            lot.PlayerID,
		WinnerParticipantID: lot.CurrentLeaderID,
		FinalPrice:          lot.CurrentPrice,
		SoldAt:              soldAt.UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal settlement record",
			slog.Int("lot_id", lot.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	key := fmt.Sprintf("settlements/league_%d/lot_%d.json", lot.LeagueID, lot.ID)
	if _, err := s.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		s.logger.ErrorContext(ctx, "failed to archive settlement",
			slog.Int("lot_id", lot.ID),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "settlement archived", slog.String("key", key))
}
