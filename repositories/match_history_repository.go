package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	ErrMatchRecordNotFound = errors.New("match record not found")
	ErrMatchRecordInvalid  = errors.New("match record violates history constraints")
)

type MatchHistoryRepository interface {
	Create(ctx context.Context, record *models.MatchRecord) error
	// CreateBatch stores all records or none of them.
	CreateBatch(ctx context.Context, records []*models.MatchRecord) error
	GetByID(ctx context.Context, id int) (*models.MatchRecord, error)
	// List returns every record, newest first.
	List(ctx context.Context) ([]*models.MatchRecord, error)
	// ListPlayerStats aggregates per player, ordered by player name.
	ListPlayerStats(ctx context.Context) ([]*models.PlayerStats, error)
	Delete(ctx context.Context, id int) error
}

type postgresMatchHistoryRepository struct {
	db *sql.DB
}

func NewPostgresMatchHistoryRepository(db *sql.DB) MatchHistoryRepository {
	return &postgresMatchHistoryRepository{db: db}
}

const insertMatchRecordQuery = `
	INSERT INTO match_history
		(tournament_id, player1, player2, score1, score2, winner, stage, match_date, forfeit)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at`

func (r *postgresMatchHistoryRepository) insert(ctx context.Context, exec SQLExecutor, record *models.MatchRecord) error {
	err := exec.QueryRowContext(ctx, insertMatchRecordQuery,
		record.TournamentID,
		record.Player1,
		record.Player2,
		record.Score1,
		record.Score2,
		record.Winner,
		record.Stage,
		record.Date,
		record.Forfeit,
	).Scan(&record.ID, &record.CreatedAt)
	return r.handleMatchRecordError(err)
}

func (r *postgresMatchHistoryRepository) Create(ctx context.Context, record *models.MatchRecord) error {
	return r.insert(ctx, r.db, record)
}

func (r *postgresMatchHistoryRepository) CreateBatch(ctx context.Context, records []*models.MatchRecord) (txErr error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CreateBatch: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				txErr = fmt.Errorf("%w (rollback also failed: %v)", txErr, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("CreateBatch: failed to commit transaction: %w", cErr)
		}
	}()

	for _, record := range records {
		if err := r.insert(ctx, tx, record); err != nil {
			return fmt.Errorf("CreateBatch: %s vs %s: %w", record.Player1, record.Player2, err)
		}
	}
	return nil
}

const selectMatchRecordColumns = `
	SELECT id, tournament_id, player1, player2, score1, score2, winner, stage,
	       to_char(match_date, 'YYYY-MM-DD'), forfeit, created_at
	FROM match_history`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMatchRecord(row rowScanner) (*models.MatchRecord, error) {
	record := &models.MatchRecord{}
	var tournamentID sql.NullString
	err := row.Scan(
		&record.ID,
		&tournamentID,
		&record.Player1,
		&record.Player2,
		&record.Score1,
		&record.Score2,
		&record.Winner,
		&record.Stage,
		&record.Date,
		&record.Forfeit,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tournamentID.Valid {
		record.TournamentID = &tournamentID.String
	}
	return record, nil
}

func (r *postgresMatchHistoryRepository) GetByID(ctx context.Context, id int) (*models.MatchRecord, error) {
	record, err := scanMatchRecord(r.db.QueryRowContext(ctx, selectMatchRecordColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchRecordNotFound
		}
		return nil, fmt.Errorf("GetByID: failed to scan match record %d: %w", id, err)
	}
	return record, nil
}

func (r *postgresMatchHistoryRepository) List(ctx context.Context) ([]*models.MatchRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectMatchRecordColumns+` ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("List: failed to query match history: %w", err)
	}
	defer rows.Close()

	records := make([]*models.MatchRecord, 0)
	for rows.Next() {
		record, err := scanMatchRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("List: failed to scan match record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows iteration error: %w", err)
	}
	return records, nil
}

func (r *postgresMatchHistoryRepository) ListPlayerStats(ctx context.Context) ([]*models.PlayerStats, error) {
	query := `
		SELECT player, COUNT(*), COUNT(*) FILTER (WHERE won), COALESCE(SUM(points), 0)
		FROM (
			SELECT player1 AS player, score1 AS points, winner = player1 AS won FROM match_history
			UNION ALL
			SELECT player2, score2, winner = player2 FROM match_history
		) appearances
		GROUP BY player
		ORDER BY player`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListPlayerStats: failed to query player stats: %w", err)
	}
	defer rows.Close()

	stats := make([]*models.PlayerStats, 0)
	for rows.Next() {
		s := &models.PlayerStats{}
		if err := rows.Scan(&s.Player, &s.MatchesPlayed, &s.MatchesWon, &s.TotalPoints); err != nil {
			return nil, fmt.Errorf("ListPlayerStats: failed to scan row: %w", err)
		}
		s.WinRate = winRate(s.MatchesWon, s.MatchesPlayed)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListPlayerStats: rows iteration error: %w", err)
	}
	return stats, nil
}

func (r *postgresMatchHistoryRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM match_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("Delete: failed to delete match record %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchRecordNotFound)
}

func (r *postgresMatchHistoryRepository) handleMatchRecordError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// 23514: check_violation, 22P02: invalid_text_representation (bad uuid)
		switch {
		case pqErr.Constraint == "match_history_distinct_players",
			pqErr.Code == "23514",
			pqErr.Code == "22P02",
			pqErr.Code == "22007":
			return fmt.Errorf("%w: %s", ErrMatchRecordInvalid, pqErr.Message)
		}
	}
	return err
}

func winRate(won, played int) float64 {
	if played == 0 {
		return 0
	}
	return float64(won) / float64(played)
}

// memoryMatchHistoryRepository keeps the history in process. It is used
// when no database is configured.
type memoryMatchHistoryRepository struct {
	mu      sync.RWMutex
	records []models.MatchRecord
	nextID  int
	now     func() time.Time
}

func NewMemoryMatchHistoryRepository() MatchHistoryRepository {
	return &memoryMatchHistoryRepository{nextID: 1, now: time.Now}
}

func (r *memoryMatchHistoryRepository) validate(record *models.MatchRecord) error {
	if record.Player1 == record.Player2 {
		return fmt.Errorf("%w: players must differ", ErrMatchRecordInvalid)
	}
	if record.Score1 < 0 || record.Score2 < 0 {
		return fmt.Errorf("%w: scores must not be negative", ErrMatchRecordInvalid)
	}
	if _, err := time.Parse(models.DateLayout, record.Date); err != nil {
		return fmt.Errorf("%w: bad date %q", ErrMatchRecordInvalid, record.Date)
	}
	return nil
}

func (r *memoryMatchHistoryRepository) store(record *models.MatchRecord) {
	record.ID = r.nextID
	record.CreatedAt = r.now()
	r.nextID++
	r.records = append(r.records, *record)
}

func (r *memoryMatchHistoryRepository) Create(ctx context.Context, record *models.MatchRecord) error {
	if err := r.validate(record); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(record)
	return nil
}

func (r *memoryMatchHistoryRepository) CreateBatch(ctx context.Context, records []*models.MatchRecord) error {
	for _, record := range records {
		if err := r.validate(record); err != nil {
			return fmt.Errorf("CreateBatch: %s vs %s: %w", record.Player1, record.Player2, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range records {
		r.store(record)
	}
	return nil
}

func (r *memoryMatchHistoryRepository) GetByID(ctx context.Context, id int) (*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.records {
		if r.records[i].ID == id {
			record := r.records[i]
			return &record, nil
		}
	}
	return nil, ErrMatchRecordNotFound
}

func (r *memoryMatchHistoryRepository) List(ctx context.Context) ([]*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := make([]*models.MatchRecord, 0, len(r.records))
	for i := len(r.records) - 1; i >= 0; i-- {
		record := r.records[i]
		records = append(records, &record)
	}
	return records, nil
}

func (r *memoryMatchHistoryRepository) ListPlayerStats(ctx context.Context) ([]*models.PlayerStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byPlayer := make(map[string]*models.PlayerStats)
	add := func(player string, points int, won bool) {
		s, ok := byPlayer[player]
		if !ok {
			s = &models.PlayerStats{Player: player}
			byPlayer[player] = s
		}
		s.MatchesPlayed++
		s.TotalPoints += points
		if won {
			s.MatchesWon++
		}
	}
	for _, rec := range r.records {
		add(rec.Player1, rec.Score1, rec.Winner == rec.Player1)
		add(rec.Player2, rec.Score2, rec.Winner == rec.Player2)
	}

	stats := make([]*models.PlayerStats, 0, len(byPlayer))
	for _, s := range byPlayer {
		s.WinRate = winRate(s.MatchesWon, s.MatchesPlayed)
		stats = append(stats, s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Player < stats[j].Player })
	return stats, nil
}

func (r *memoryMatchHistoryRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return ErrMatchRecordNotFound
}
