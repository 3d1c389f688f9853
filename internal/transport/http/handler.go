package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"blog-job-service/internal/entity"
	"blog-job-service/internal/service"
)

type Handler struct {
	jobSvc     *service.JobService
	cleanupSvc *service.CleanupService
	log        zerolog.Logger
}

func NewHandler(jobSvc *service.JobService, cleanupSvc *service.CleanupService, log zerolog.Logger) *Handler {
	return &Handler{
		jobSvc:     jobSvc,
		cleanupSvc: cleanupSvc,
		log:        log.With().Str("component", "http").Logger(),
	}
}

type submitJobDTO struct {
	Idea     string `json:"idea" example:"AI in healthcare"`
	Tone     string `json:"tone" example:"Professional"`
	Priority *int   `json:"priority,omitempty"` // 0=low,1=normal,2=high (nil => 1)
}

type submitJobResp struct {
	TrackingID string           `json:"tracking_id"`
	Status     entity.JobStatus `json:"status"`
}

type jobResultResp struct {
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	WordCount int            `json:"word_count"`
	Images    []string       `json:"images"`
	Rating    *entity.Rating `json:"rating"`
}

type listJobsResp struct {
	Count int          `json:"count"`
	Jobs  []entity.Job `json:"jobs"`
}

type cleanupDTO struct {
	Type   string `json:"type" enums:"all,status" example:"status"`
	DryRun *bool  `json:"dry_run" binding:"required"`
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// SubmitJob godoc
// @Summary Submit a blog generation job
// @Description Creates the job (status init) and hands it to the pipeline. Returns without waiting.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body submitJobDTO true "idea and tone (priority: 0=low,1=normal,2=high)"
// @Success 201 {object} submitJobResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /jobs [post]
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var dto submitJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := h.jobSvc.Submit(r.Context(), service.SubmitRequest{
		Idea:     dto.Idea,
		Tone:     dto.Tone,
		Priority: dto.Priority,
	})
	if err != nil {
		writeServiceErr(w, h.log, err)
		return
	}

	w.Header().Set("Location", "/jobs/"+job.TrackingID.String())
	writeJSON(w, http.StatusCreated, submitJobResp{TrackingID: job.TrackingID.String(), Status: job.Status})
}

// GetJob godoc
// @Summary Poll a job
// @Description Returns the stored job record, including result or failure fields once terminal.
// @Tags jobs
// @Produce json
// @Param id path string true "tracking id (uuid)"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.Get(r.Context(), id)
	if err != nil {
		writeServiceErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

// GetJobResult godoc
// @Summary Get the generated post
// @Tags jobs
// @Produce json
// @Param id path string true "tracking id (uuid)"
// @Success 200 {object} jobResultResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	j, err := h.jobSvc.Get(r.Context(), id)
	if err != nil {
		writeServiceErr(w, h.log, err)
		return
	}
	if j.Status != entity.StatusCompleted {
		writeErr(w, http.StatusConflict, "job not completed")
		return
	}

	writeJSON(w, http.StatusOK, jobResultResp{
		Title:     j.Title,
		Content:   j.Content,
		WordCount: j.WordCount,
		Images:    j.Images,
		Rating:    j.Rating,
	})
}

// DeleteJob godoc
// @Summary Delete a job record
// @Description Removes the record in any state. A running pipeline stops at its next check.
// @Tags jobs
// @Param id path string true "tracking id (uuid)"
// @Success 204
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [delete]
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.jobSvc.Delete(r.Context(), id); err != nil {
		writeServiceErr(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListJobs godoc
// @Summary List jobs, newest first
// @Tags jobs
// @Produce json
// @Param limit query int false "max jobs to return"
// @Success 200 {object} listJobsResp
// @Failure 400 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	jobs, err := h.jobSvc.List(r.Context(), limit)
	if err != nil {
		writeServiceErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, listJobsResp{Count: len(jobs), Jobs: jobs})
}

// Cleanup godoc
// @Summary Delete stale jobs
// @Description type=all removes every job older than the age threshold; type=status only completed, failed and abandoned in-progress ones. dry_run (required) reports without deleting and returns service.Preview instead.
// @Tags maintenance
// @Accept json
// @Produce json
// @Param request body cleanupDTO true "strategy and mode"
// @Success 200 {object} service.Result "real run; a dry run returns service.Preview"
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /jobs/cleanup [post]
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var dto cleanupDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	strategy, err := service.ParseStrategy(dto.Type)
	if err != nil {
		writeServiceErr(w, h.log, err)
		return
	}
	if dto.DryRun == nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "dry_run must be set", Field: "dry_run"})
		return
	}

	if *dto.DryRun {
		p, err := h.cleanupSvc.Preview(r.Context(), strategy)
		if err != nil {
			writeServiceErr(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	res, err := h.cleanupSvc.Execute(r.Context(), strategy)
	if err != nil {
		writeServiceErr(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
