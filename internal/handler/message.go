package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/relaypoint/message-relay/internal/domain"
	"github.com/relaypoint/message-relay/internal/service"
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	service  *service.MessageService
	validate *validator.Validate
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service *service.MessageService) *MessageHandler {
	return &MessageHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers message routes
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Send)
	r.Get("/", h.List)
	r.Get("/{id}", h.GetByID)
}

// SendMessageRequest represents a request to relay a message
// @Description Request to relay a message to the provider
type SendMessageRequest struct {
	To        string   `json:"to" validate:"required" example:"+15551234567"`
	Body      string   `json:"body,omitempty" example:"Your verification code is 123456"`
	MediaURLs []string `json:"mediaUrls,omitempty" validate:"omitempty,dive,url"`
}

// Send relays a single message
// @Summary Send message
// @Description Validate and relay a message to the SMS provider
// @Tags messages
// @Accept json
// @Produce json
// @Param message body SendMessageRequest true "Message request"
// @Success 201 {object} Response{data=service.SendOutcome}
// @Failure 400 {object} Response
// @Failure 429 {object} Response
// @Failure 502 {object} Response
// @Failure 503 {object} Response
// @Router /api/v1/messages [post]
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	outcome, err := h.service.Send(r.Context(), domain.SendRequest{
		To:        req.To,
		Body:      req.Body,
		MediaURLs: req.MediaURLs,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusCreated, outcome)
}

// GetByID retrieves a message record
// @Summary Get message
// @Description Get a relayed message by ID
// @Tags messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} Response{data=domain.Message}
// @Failure 404 {object} Response
// @Router /api/v1/messages/{id} [get]
func (h *MessageHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid message ID", nil)
		return
	}

	message, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, message)
}

// List lists message records
// @Summary List messages
// @Description List relayed messages with optional filters
// @Tags messages
// @Produce json
// @Param status query string false "Filter by status"
// @Param to query string false "Filter by destination"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} Response{data=domain.MessageListResult}
// @Router /api/v1/messages [get]
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.MessageFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		s := domain.Status(status)
		if !s.IsValid() {
			JSONError(w, http.StatusBadRequest, "INVALID_STATUS", "Invalid status filter", nil)
			return
		}
		filter.Status = &s
	}

	if to := r.URL.Query().Get("to"); to != "" {
		filter.To = &to
	}

	if start := r.URL.Query().Get("start_date"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			JSONError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid start_date, expected RFC3339", nil)
			return
		}
		filter.StartDate = &t
	}

	if end := r.URL.Query().Get("end_date"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			JSONError(w, http.StatusBadRequest, "INVALID_DATE", "Invalid end_date, expected RFC3339", nil)
			return
		}
		filter.EndDate = &t
	}

	if page := r.URL.Query().Get("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil {
			filter.Page = p
		}
	}

	if pageSize := r.URL.Query().Get("page_size"); pageSize != "" {
		if ps, err := strconv.Atoi(pageSize); err == nil {
			filter.PageSize = ps
		}
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, result)
}
