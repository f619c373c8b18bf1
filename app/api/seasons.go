package api

import (
	"net/http"
	"time"

	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	seasonqueue "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/queue"
	seasondb "github.com/Black-And-White-Club/arena-ranking/app/modules/season/infrastructure/repositories"
)

func (h *Handlers) ListSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.svc.Seasons.List(r.Context())
	if err != nil {
		h.internal(w, r, "ListSeasons", err)
		return
	}
	if seasons == nil {
		seasons = []seasondb.Season{}
	}
	writeJSON(w, http.StatusOK, seasons)
}

func (h *Handlers) CreateSeason(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.Seasons.Create(r.Context(), body.Name)
	respond(h, w, r, "CreateSeason", http.StatusCreated, res, err)
}

func (h *Handlers) ActivateSeason(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.Seasons.Activate(r.Context(), id)
	respond(h, w, r, "ActivateSeason", http.StatusOK, res, err)
}

type endBody struct {
	NextSeasonID *int64 `json:"next_season_id"`
}

// EndSeason ends a season and optionally activates the next one. An empty body ends without
// a successor.
func (h *Handlers) EndSeason(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var body endBody
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.Seasons.EndAndRotate(r.Context(), id, body.NextSeasonID)
	respond(h, w, r, "EndAndRotate", http.StatusOK, res, err)
}

type scheduleBody struct {
	NextSeasonID *int64    `json:"next_season_id"`
	At           time.Time `json:"at"`
}

func (h *Handlers) ScheduleSeasonEnd(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var body scheduleBody
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.Seasons.ScheduleEnd(r.Context(), id, body.NextSeasonID, body.At)
	if err != nil {
		h.internal(w, r, "ScheduleEnd", err)
		return
	}
	if res.IsFailure() {
		h.failure(w, r, res.FailureErr())
		return
	}
	writeJSON(w, http.StatusAccepted, res.Unwrap())
}

// HardReset wipes every ledger entry and accumulator. The body must carry {"confirmation":"RESET"}.
func (h *Handlers) HardReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirmation string `json:"confirmation"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	res, err := h.svc.Seasons.HardReset(r.Context(), body.Confirmation)
	respond(h, w, r, "HardReset", http.StatusOK, res, err)
}

func (h *Handlers) SeasonStats(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.Seasons.Stats(r.Context(), id)
	respond(h, w, r, "SeasonStats", http.StatusOK, res, err)
}

// SeasonJobs lists scheduled rotations for a season.
func (h *Handlers) SeasonJobs(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if h.svc.Jobs == nil {
		writeError(w, http.StatusNotImplemented, seasonservice.ErrSchedulingDisabled.Error())
		return
	}
	jobs, err := h.svc.Jobs.ScheduledJobs(r.Context(), id)
	if err != nil {
		h.internal(w, r, "ScheduledJobs", err)
		return
	}
	if jobs == nil {
		jobs = []seasonqueue.JobInfo{}
	}
	writeJSON(w, http.StatusOK, jobs)
}
