package stubd

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zazzle-agent/taskwatch/internals/schemas"
)

func (s *Server) HandlerListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to list tasks", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	RenderJSON(w, r, tasks)
}

type commissionRequest struct {
	DonationID int64 `json:"donation_id"`
}

func (s *Server) HandlerCommissionTask(w http.ResponseWriter, r *http.Request) {
	var request commissionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}

	task, err := s.runner.Commission(r.Context(), request.DonationID)
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to commission task", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	RenderJSON(w, r, task, Render.Status(http.StatusAccepted))
}

func (s *Server) HandlerCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "task id is required", nil), Render.Status(http.StatusBadRequest))
		return
	}

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "task not found", nil), Render.Status(http.StatusNotFound))
			return
		}
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to read task", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	if !task.Status.Terminal() {
		cancelled := schemas.TaskStatusCancelled
		patch := schemas.TaskPatch{Status: &cancelled}
		if err := s.store.ApplyPatch(r.Context(), taskID, patch); err != nil {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to cancel task", nil), Render.Status(http.StatusInternalServerError))
			return
		}
		s.hub.BroadcastTaskUpdate(taskID, patch)
		task.Status = cancelled
	}

	RenderJSON(w, r, task)
}

func (s *Server) HandlerListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to list products", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	RenderJSON(w, r, products)
}

func interactionModeParam(r *http.Request) (schemas.InteractionMode, error) {
	var mode schemas.InteractionMode
	if errs := schemas.InteractionModeSchema.Parse(chi.URLParam(r, "mode"), &mode); errs != nil {
		return "", errors.New("mode must be comment or post")
	}
	return mode, nil
}

func (s *Server) HandlerGetInteraction(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	mode, err := interactionModeParam(r)
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, err.Error(), nil), Render.Status(http.StatusBadRequest))
		return
	}

	record, err := s.store.GetInteraction(r.Context(), productID, mode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "no interaction recorded", nil), Render.Status(http.StatusNotFound))
			return
		}
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to read interaction", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	RenderJSON(w, r, record)
}

func (s *Server) HandlerSubmitInteraction(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	mode, err := interactionModeParam(r)
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, err.Error(), nil), Render.Status(http.StatusBadRequest))
		return
	}

	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	subreddit := r.URL.Query().Get("subreddit")
	if subreddit == "" {
		subreddit = s.subreddit
	}

	record := schemas.Interaction{
		ProductID:     productID,
		Mode:          mode,
		Status:        "submitted",
		DryRun:        dryRun,
		SubredditName: subreddit,
	}
	now := nowRFC3339()
	switch mode {
	case schemas.InteractionModeComment:
		record.CommentID = uuid.NewString()
		record.CommentURL = fmt.Sprintf("https://reddit.example.com/r/%s/comments/%s", subreddit, record.CommentID)
		record.CommentedAt = now
	case schemas.InteractionModePost:
		record.RedditPostID = uuid.NewString()
		record.RedditPostURL = fmt.Sprintf("https://reddit.example.com/r/%s/%s", subreddit, record.RedditPostID)
		record.SubmittedAt = now
	}

	stored, err := s.store.CreateInteraction(r.Context(), record)
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInternal, "Failed to record interaction", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	RenderJSON(w, r, stored, Render.Status(http.StatusCreated))
}
