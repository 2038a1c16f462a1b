package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/services"
	"github.com/go-chi/chi/v5"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
}

func NewTournamentHandler(ts services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: ts}
}

type scheduleMatchInput struct {
	Player1 string `json:"player1" validate:"required,max=100"`
	Player2 string `json:"player2" validate:"required,max=100"`
}

type matchResultInput struct {
	Player1 string `json:"player1" validate:"required"`
	Player2 string `json:"player2" validate:"required"`
	Winner  string `json:"winner" validate:"required"`
}

// resultsInput carries the winners of the matches an operation will ask
// about. Answers for the same pairing are used in the order given.
type resultsInput struct {
	Results []matchResultInput `json:"results" validate:"dive"`
}

func (in resultsInput) provider() *brackets.ScriptedResults {
	scripted := brackets.NewScriptedResults()
	for _, res := range in.Results {
		scripted.Add(res.Player1, res.Player2, res.Winner)
	}
	return scripted
}

type withdrawalInput struct {
	Player     string `json:"player" validate:"required,max=100"`
	Substitute string `json:"substitute" validate:"max=100"`
}

func tournamentID(r *http.Request) string {
	return chi.URLParam(r, "tournamentID")
}

// CreateHandler handles POST /tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input services.CreateTournamentInput
	if !readValidJSON(w, r, &input) {
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler handles GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	tournament, err := h.tournamentService.Get(r.Context(), tournamentID(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler handles GET /tournaments
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournaments := h.tournamentService.List(r.Context())
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ScheduleQualifierHandler handles POST /tournaments/{tournamentID}/qualifiers
func (h *TournamentHandler) ScheduleQualifierHandler(w http.ResponseWriter, r *http.Request) {
	var input scheduleMatchInput
	if !readValidJSON(w, r, &input) {
		return
	}

	id := tournamentID(r)
	if err := h.tournamentService.ScheduleQualifier(r.Context(), id, input.Player1, input.Player2); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"scheduled_matches": tournament.ScheduledMatches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ResolveQualifiersHandler handles POST /tournaments/{tournamentID}/qualifiers/resolve
func (h *TournamentHandler) ResolveQualifiersHandler(w http.ResponseWriter, r *http.Request) {
	var input resultsInput
	if !readValidJSON(w, r, &input) {
		return
	}

	winners, err := h.tournamentService.ResolveQualifiers(r.Context(), tournamentID(r), input.provider())
	if err != nil {
		// Decided matches are kept even when the results ran out.
		if errors.Is(err, brackets.ErrNoResult) && len(winners) > 0 {
			env := jsonResponse{"error": err.Error(), "winners": winners}
			if werr := writeJSON(w, http.StatusUnprocessableEntity, env, nil); werr != nil {
				serverErrorResponse(w, r, werr)
			}
			return
		}
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"winners": winners}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RunGroupStageHandler handles POST /tournaments/{tournamentID}/groups/run
func (h *TournamentHandler) RunGroupStageHandler(w http.ResponseWriter, r *http.Request) {
	var input resultsInput
	if !readValidJSON(w, r, &input) {
		return
	}

	id := tournamentID(r)
	forwarded, err := h.tournamentService.RunGroupStage(r.Context(), id, input.provider())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	env := jsonResponse{"knockout_players": forwarded, "groups": tournament.Groups}
	if err := writeJSON(w, http.StatusOK, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RunKnockoutHandler handles POST /tournaments/{tournamentID}/knockout/run
func (h *TournamentHandler) RunKnockoutHandler(w http.ResponseWriter, r *http.Request) {
	var input resultsInput
	if !readValidJSON(w, r, &input) {
		return
	}

	id := tournamentID(r)
	champion, err := h.tournamentService.RunKnockout(r.Context(), id, input.provider())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Get(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	env := jsonResponse{"champion": champion, "bracket": tournament.Bracket}
	if err := writeJSON(w, http.StatusOK, env, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AdvanceStageHandler handles POST /tournaments/{tournamentID}/advance
func (h *TournamentHandler) AdvanceStageHandler(w http.ResponseWriter, r *http.Request) {
	stage, err := h.tournamentService.AdvanceStage(r.Context(), tournamentID(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterWithdrawalHandler handles POST /tournaments/{tournamentID}/withdrawals
func (h *TournamentHandler) RegisterWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	var input withdrawalInput
	if !readValidJSON(w, r, &input) {
		return
	}

	withdrawal, err := h.tournamentService.RegisterWithdrawal(r.Context(), tournamentID(r), input.Player, input.Substitute)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"withdrawal": withdrawal}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ProcessWithdrawalHandler handles POST /tournaments/{tournamentID}/withdrawals/process
func (h *TournamentHandler) ProcessWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	withdrawal, err := h.tournamentService.ProcessNextWithdrawal(r.Context(), tournamentID(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"withdrawal": withdrawal}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListWithdrawalsHandler handles GET /tournaments/{tournamentID}/withdrawals
func (h *TournamentHandler) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	withdrawals, err := h.tournamentService.ListWithdrawals(r.Context(), tournamentID(r))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"withdrawals": withdrawals}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SearchWithdrawalsHandler handles GET /tournaments/{tournamentID}/withdrawals/search?player=
func (h *TournamentHandler) SearchWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		badRequestResponse(w, r, errors.New("player query parameter is required"))
		return
	}

	withdrawals, err := h.tournamentService.SearchWithdrawals(r.Context(), tournamentID(r), player)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"withdrawals": withdrawals}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
