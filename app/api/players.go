package api

import (
	"net/http"
	"strings"

	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	playerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/player/infrastructure/repositories"
)

const playerHistoryLimit = 50

type playerDetail struct {
	Player  *playerdb.Player        `json:"player"`
	Rank    int                     `json:"rank"`
	History []ledgerdb.HistoryEntry `json:"history"`
}

// GetPlayerDetail returns a player with their rank and latest ledger entries. Outside /admin the
// email address is withheld.
func (h *Handlers) GetPlayerDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()

	res, err := h.svc.Players.GetPlayer(ctx, id)
	if err != nil {
		h.internal(w, r, "GetPlayer", err)
		return
	}
	if res.IsFailure() {
		h.failure(w, r, res.FailureErr())
		return
	}
	player := *res.Unwrap()
	if !strings.HasPrefix(r.URL.Path, "/admin/") {
		player.Email = nil
	}

	rank, err := h.svc.Ledger.RankOf(ctx, id)
	if err != nil {
		h.internal(w, r, "RankOf", err)
		return
	}
	if rank.IsFailure() {
		h.failure(w, r, rank.FailureErr())
		return
	}

	history, err := h.svc.Ledger.History(ctx, id, playerHistoryLimit)
	if err != nil {
		h.internal(w, r, "History", err)
		return
	}
	if history == nil {
		history = []ledgerdb.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, playerDetail{Player: &player, Rank: rank.Unwrap(), History: history})
}

func (h *Handlers) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.svc.Players.Search(r.Context(), r.URL.Query().Get("q"), 0)
	if err != nil {
		h.internal(w, r, "Search", err)
		return
	}
	if players == nil {
		players = []playerdb.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

type registerBody struct {
	Handle string `json:"handle"`
	ChatID string `json:"chat_id"`
	Nick   string `json:"nick"`
	Email  string `json:"email"`
}

func (h *Handlers) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.Players.Register(r.Context(), body.Handle, body.ChatID, body.Nick, body.Email)
	respond(h, w, r, "Register", http.StatusCreated, res, err)
}

type profileBody struct {
	Nick  string `json:"nick"`
	Email string `json:"email"`
	Bio   string `json:"bio"`
}

func (h *Handlers) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var body profileBody
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.Players.UpdateProfile(r.Context(), id, body.Nick, body.Email, body.Bio)
	respond(h, w, r, "UpdateProfile", http.StatusOK, res, err)
}

func (h *Handlers) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.Players.DeletePlayer(r.Context(), id)
	respond(h, w, r, "DeletePlayer", http.StatusOK, res, err)
}
