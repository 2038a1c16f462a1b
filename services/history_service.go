package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
	"github.com/Dosada05/tournament-engine/storage"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const unknownStage = "Unknown"

var csvHeader = []string{"Match ID", "Date", "Stage", "Player 1", "Player 2", "Score 1", "Score 2", "Winner"}

type RecordMatchInput struct {
	TournamentID *string `json:"tournament_id,omitempty" validate:"omitempty,uuid"`
	Player1      string  `json:"player1" validate:"required,max=100"`
	Player2      string  `json:"player2" validate:"required,max=100,nefield=Player1"`
	Score1       int     `json:"score1" validate:"min=0"`
	Score2       int     `json:"score2" validate:"min=0"`
	Stage        string  `json:"stage" validate:"max=50"`
	Date         string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Forfeit      bool    `json:"forfeit"`
}

// MatchRecorder stores decided matches. All of them are stored or none.
type MatchRecorder interface {
	RecordMatches(ctx context.Context, inputs []RecordMatchInput) ([]*models.MatchRecord, error)
}

type HistoryService interface {
	MatchRecorder
	RecordMatch(ctx context.Context, input RecordMatchInput) (*models.MatchRecord, error)
	List(ctx context.Context) ([]*models.MatchRecord, error)
	GetByID(ctx context.Context, id int) (*models.MatchRecord, error)
	Delete(ctx context.Context, id int) error
	PlayerStats(ctx context.Context) ([]*models.PlayerStats, error)
	TopPerformers(ctx context.Context) (*models.TopPerformers, error)
	Summary(ctx context.Context) (*models.HistorySummary, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Export(ctx context.Context) (*storage.UploadResult, error)
}

type historyService struct {
	repo     repositories.MatchHistoryRepository
	uploader storage.FileUploader
	logger   *slog.Logger
	now      func() time.Time
}

// NewHistoryService wires the history. uploader may be nil, in which case
// Export reports ErrExportUnavailable.
func NewHistoryService(repo repositories.MatchHistoryRepository, uploader storage.FileUploader, logger *slog.Logger) HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyService{
		repo:     repo,
		uploader: uploader,
		logger:   logger,
		now:      time.Now,
	}
}

// validateRecordInput reports why input cannot be stored.
func validateRecordInput(input RecordMatchInput) error {
	p1 := strings.TrimSpace(input.Player1)
	p2 := strings.TrimSpace(input.Player2)
	if p1 == "" || p2 == "" {
		return fmt.Errorf("%w: both player names are required", ErrValidationFailed)
	}
	if p1 == p2 {
		return fmt.Errorf("%w: a player cannot play against themself", ErrValidationFailed)
	}
	if input.Score1 < 0 || input.Score2 < 0 {
		return fmt.Errorf("%w: scores must not be negative", ErrValidationFailed)
	}
	if input.Date != "" {
		if _, err := time.Parse(models.DateLayout, input.Date); err != nil {
			return fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", ErrValidationFailed, input.Date)
		}
	}
	return nil
}

func (s *historyService) buildRecord(input RecordMatchInput) (*models.MatchRecord, error) {
	if err := validateRecordInput(input); err != nil {
		return nil, err
	}
	p1 := strings.TrimSpace(input.Player1)
	p2 := strings.TrimSpace(input.Player2)

	date := input.Date
	if date == "" {
		date = s.now().Format(models.DateLayout)
	}

	stage := strings.TrimSpace(input.Stage)
	if stage == "" {
		stage = unknownStage
	}

	winner := p2
	if input.Score1 > input.Score2 {
		winner = p1
	}

	return &models.MatchRecord{
		TournamentID: input.TournamentID,
		Player1:      p1,
		Player2:      p2,
		Score1:       input.Score1,
		Score2:       input.Score2,
		Winner:       winner,
		Stage:        stage,
		Date:         date,
		Forfeit:      input.Forfeit,
	}, nil
}

func (s *historyService) RecordMatch(ctx context.Context, input RecordMatchInput) (*models.MatchRecord, error) {
	record, err := s.buildRecord(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, handleHistoryRepositoryError(err)
	}
	s.logger.Info("match recorded",
		slog.Int("match_id", record.ID),
		slog.String("winner", record.Winner),
		slog.String("stage", record.Stage))
	return record, nil
}

func (s *historyService) RecordMatches(ctx context.Context, inputs []RecordMatchInput) ([]*models.MatchRecord, error) {
	records := make([]*models.MatchRecord, 0, len(inputs))
	for i, input := range inputs {
		record, err := s.buildRecord(input)
		if err != nil {
			return nil, fmt.Errorf("match %d: %w", i+1, err)
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return records, nil
	}
	if err := s.repo.CreateBatch(ctx, records); err != nil {
		return nil, handleHistoryRepositoryError(err)
	}
	s.logger.Info("matches recorded", slog.Int("count", len(records)))
	return records, nil
}

func (s *historyService) List(ctx context.Context) ([]*models.MatchRecord, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list match history: %w", err)
	}
	return records, nil
}

func (s *historyService) GetByID(ctx context.Context, id int) (*models.MatchRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, handleHistoryRepositoryError(err)
	}
	return record, nil
}

func (s *historyService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return handleHistoryRepositoryError(err)
	}
	return nil
}

func (s *historyService) PlayerStats(ctx context.Context) ([]*models.PlayerStats, error) {
	stats, err := s.repo.ListPlayerStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load player stats: %w", err)
	}
	return stats, nil
}

// TopPerformers picks the leaders from the per-player stats. Ties go to the
// player listed first.
func (s *historyService) TopPerformers(ctx context.Context) (*models.TopPerformers, error) {
	stats, err := s.PlayerStats(ctx)
	if err != nil {
		return nil, err
	}
	top := &models.TopPerformers{}
	if len(stats) == 0 {
		return top, nil
	}

	top.MostWins = lo.MaxBy(stats, func(a, b *models.PlayerStats) bool { return a.MatchesWon > b.MatchesWon })
	top.HighestScorer = lo.MaxBy(stats, func(a, b *models.PlayerStats) bool { return a.TotalPoints > b.TotalPoints })

	qualified := lo.Filter(stats, func(p *models.PlayerStats, _ int) bool {
		return p.MatchesPlayed >= models.MinMatchesForWinRate
	})
	if len(qualified) > 0 {
		top.HighestWinRate = lo.MaxBy(qualified, func(a, b *models.PlayerStats) bool { return a.WinRate > b.WinRate })
	}
	return top, nil
}

func (s *historyService) Summary(ctx context.Context) (*models.HistorySummary, error) {
	var (
		records []*models.MatchRecord
		stats   []*models.PlayerStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = s.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.PlayerStats(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &models.HistorySummary{
		TotalMatches: len(records),
		TotalPoints: lo.SumBy(records, func(r *models.MatchRecord) int {
			return r.Score1 + r.Score2
		}),
		MatchesByStage: lo.CountValuesBy(records, func(r *models.MatchRecord) string {
			return r.Stage
		}),
		Players: len(stats),
	}
	if summary.TotalMatches > 0 {
		summary.AveragePointsPerMatch = float64(summary.TotalPoints) / float64(summary.TotalMatches)
	}
	return summary, nil
}

func (s *historyService) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.List(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.ID),
			r.Date,
			r.Stage,
			r.Player1,
			r.Player2,
			strconv.Itoa(r.Score1),
			strconv.Itoa(r.Score2),
			r.Winner,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for match %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *historyService) Export(ctx context.Context) (*storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, ErrExportUnavailable
	}

	var buf bytes.Buffer
	if err := s.ExportCSV(ctx, &buf); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/match_history_%s.csv", s.now().UTC().Format("20060102T150405Z"))
	result, err := s.uploader.Upload(ctx, key, "text/csv", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to upload match history export: %w", err)
	}
	s.logger.Info("match history exported", slog.String("key", result.Key), slog.String("location", result.Location))
	return result, nil
}

func handleHistoryRepositoryError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrMatchRecordNotFound):
		return ErrMatchRecordNotFound
	case errors.Is(err, repositories.ErrMatchRecordInvalid):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	default:
		return err
	}
}
