package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	ledgerservice "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/application"
	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
)

const (
	defaultRankingLimit = 50
	maxRankingLimit     = 500
)

type rankingResponse struct {
	Order     ledgerdb.Order      `json:"order"`
	Standings []ledgerdb.Standing `json:"standings"`
}

// GetRanking lists standings; ?order=season sorts by season points.
func (h *Handlers) GetRanking(w http.ResponseWriter, r *http.Request) {
	order := ledgerdb.ByLifetime
	if strings.EqualFold(r.URL.Query().Get("order"), "season") {
		order = ledgerdb.BySeason
	}
	standings, err := h.svc.Ledger.Ranking(r.Context(), order, limitParam(r, defaultRankingLimit, maxRankingLimit))
	if err != nil {
		h.internal(w, r, "Ranking", err)
		return
	}
	if standings == nil {
		standings = []ledgerdb.Standing{}
	}
	writeJSON(w, http.StatusOK, rankingResponse{Order: order, Standings: standings})
}

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Ledger.Dashboard(r.Context())
	if err != nil {
		h.internal(w, r, "Dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type awardBody struct {
	PlayerID int64  `json:"player_id"`
	EventID  *int64 `json:"event_id"`
	Points   int    `json:"points"`
	Position *int   `json:"position"`
	Reason   string `json:"reason"`
}

// AwardPoints records a manual adjustment. When points are omitted and a position is given, the
// position's points are awarded.
func (h *Handlers) AwardPoints(w http.ResponseWriter, r *http.Request) {
	var body awardBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Position != nil {
		if body.Points == 0 {
			body.Points = ledgerdomain.PointsForPosition(*body.Position)
		}
		if strings.TrimSpace(body.Reason) == "" {
			body.Reason = ledgerdomain.PositionReason(*body.Position)
		}
	}
	res, err := h.svc.Ledger.Award(r.Context(), ledgerservice.AwardRequest{
		PlayerID: body.PlayerID,
		EventID:  body.EventID,
		Points:   body.Points,
		Position: body.Position,
		Reason:   body.Reason,
		Actor:    Actor(r.Context()),
	})
	respond(h, w, r, "Award", http.StatusCreated, res, err)
}

func (h *Handlers) RemovePoints(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "entryID")
	if !ok {
		return
	}
	res, err := h.svc.Ledger.Remove(r.Context(), id, Actor(r.Context()))
	respond(h, w, r, "Remove", http.StatusOK, res, err)
}

type bulkBody struct {
	EventID int64                    `json:"event_id"`
	Rows    []ledgerdomain.ResultRow `json:"rows"`
	Text    string                   `json:"text"`
}

// BulkAward awards an event's results. Rows win over text; text is parsed line by line.
func (h *Handlers) BulkAward(w http.ResponseWriter, r *http.Request) {
	var body bulkBody
	if !decodeJSON(w, r, &body) {
		return
	}
	rows := body.Rows
	if len(rows) == 0 && body.Text != "" {
		rows = ledgerdomain.ParseResultsText(body.Text)
	}
	res, err := h.svc.Ledger.BulkAward(r.Context(), ledgerservice.BulkRequest{
		EventID: body.EventID,
		Rows:    rows,
		Actor:   Actor(r.Context()),
	})
	respond(h, w, r, "BulkAward", http.StatusOK, res, err)
}

type rowsResponse struct {
	Rows []ledgerdomain.ResultRow `json:"rows"`
}

func (h *Handlers) ParseResults(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	rows := ledgerdomain.ParseResultsText(body.Text)
	if rows == nil {
		rows = []ledgerdomain.ResultRow{}
	}
	writeJSON(w, http.StatusOK, rowsResponse{Rows: rows})
}

// RecognizeResults reads a results screenshot from the request body.
func (h *Handlers) RecognizeResults(w http.ResponseWriter, r *http.Request) {
	image, ok := readUpload(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Ledger.RecognizeResults(r.Context(), image)
	respond(h, w, r, "RecognizeResults", http.StatusOK, res, err)
}

// ParseResultsSpreadsheet reads an .xlsx workbook from the request body.
func (h *Handlers) ParseResultsSpreadsheet(w http.ResponseWriter, r *http.Request) {
	data, ok := readUpload(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Ledger.ParseResultsSpreadsheet(r.Context(), bytes.NewReader(data))
	if err != nil {
		h.internal(w, r, "ParseResultsSpreadsheet", err)
		return
	}
	if res.IsFailure() {
		h.failure(w, r, res.FailureErr())
		return
	}
	rows := res.Unwrap()
	if rows == nil {
		rows = []ledgerdomain.ResultRow{}
	}
	writeJSON(w, http.StatusOK, rowsResponse{Rows: rows})
}

func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", "text/csv; charset=utf-8", h.svc.Ledger.ExportCSV)
}

func (h *Handlers) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", h.svc.Ledger.ExportXLSX)
}

// export renders into memory first so a failed export still gets a clean 500.
func (h *Handlers) export(w http.ResponseWriter, r *http.Request, ext, contentType string, render func(context.Context, io.Writer) error) {
	var buf bytes.Buffer
	if err := render(r.Context(), &buf); err != nil {
		h.internal(w, r, "Export", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.svc.Ledger.ExportFilename(ext)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handlers) GetPlayerChart(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	png, err := h.svc.Ledger.PointsChart(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.failure(w, r, err)
			return
		}
		h.internal(w, r, "PointsChart", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
