package models

import "time"

// DateLayout is the calendar format match records are dated with.
const DateLayout = "2006-01-02"

// MatchRecord is a finished match kept in the history. Winner is the player
// with the higher score; on a tie it is Player2.
type MatchRecord struct {
	ID           int       `json:"id"`
	TournamentID *string   `json:"tournament_id,omitempty"`
	Player1      string    `json:"player1"`
	Player2      string    `json:"player2"`
	Score1       int       `json:"score1"`
	Score2       int       `json:"score2"`
	Winner       string    `json:"winner"`
	Stage        string    `json:"stage"`
	Date         string    `json:"date"`
	Forfeit      bool      `json:"forfeit"`
	CreatedAt    time.Time `json:"created_at"`
}

type PlayerStats struct {
	Player        string  `json:"player"`
	MatchesPlayed int     `json:"matches_played"`
	MatchesWon    int     `json:"matches_won"`
	TotalPoints   int     `json:"total_points"`
	WinRate       float64 `json:"win_rate"`
}

// TopPerformers holds the leaders of the history. HighestWinRate only
// considers players with at least MinMatchesForWinRate matches and is nil
// when nobody qualifies.
type TopPerformers struct {
	MostWins       *PlayerStats `json:"most_wins,omitempty"`
	HighestWinRate *PlayerStats `json:"highest_win_rate,omitempty"`
	HighestScorer  *PlayerStats `json:"highest_scorer,omitempty"`
}

const MinMatchesForWinRate = 3

type HistorySummary struct {
	TotalMatches          int            `json:"total_matches"`
	TotalPoints           int            `json:"total_points"`
	AveragePointsPerMatch float64        `json:"average_points_per_match"`
	MatchesByStage        map[string]int `json:"matches_by_stage"`
	Players               int            `json:"players"`
}
