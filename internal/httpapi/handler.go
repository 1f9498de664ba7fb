package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"festreg/internal/registration"
)

// Handler serves the action-based registration surface.
type Handler struct {
	svc *registration.Coordinator
}

// New creates a handler over the coordinator.
func New(svc *registration.Coordinator) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the read and write endpoints.
func (h *Handler) Routes(r gin.IRoutes) {
	r.GET("/", h.Read)
	r.POST("/", h.Register)
}

// Read dispatches on the action query parameter. Unrecognized actions get the
// generic "server running" payload.
func (h *Handler) Read(c *gin.Context) {
	action := strings.ToLower(strings.TrimSpace(c.Query("action")))
	switch action {
	case "getregistrations":
		h.readUser(c)
	case "getallregistrations":
		h.readAdmin(c)
	case "rebuildindex":
		h.rebuildIndex(c)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Server is running"})
	}
}

func (h *Handler) readUser(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		respondError(c, http.StatusBadRequest, "Email is required.")
		return
	}

	data, err := h.svc.Registrations(c.Request.Context(), email, isTruthy(c.Query("forceRefresh")))
	if err != nil {
		log.Printf("lookup for %s failed: %v", email, err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch registrations.")
		return
	}
	if data == nil {
		data = []registration.Summary{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func (h *Handler) readAdmin(c *gin.Context) {
	adminEmail := strings.TrimSpace(c.Query("adminEmail"))
	data, err := h.svc.AllRegistrations(c.Request.Context(), adminEmail, isTruthy(c.Query("forceRefresh")))
	if err != nil {
		if errors.Is(err, registration.ErrUnauthorized) {
			respondError(c, http.StatusUnauthorized, "Unauthorized admin access.")
			return
		}
		log.Printf("admin lookup failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to fetch all registrations.")
		return
	}
	if data == nil {
		data = []registration.AdminRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func (h *Handler) rebuildIndex(c *gin.Context) {
	adminEmail := strings.TrimSpace(c.Query("adminEmail"))
	if !h.svc.IsAdmin(adminEmail) {
		respondError(c, http.StatusUnauthorized, "Unauthorized admin access.")
		return
	}

	users, err := h.svc.RebuildIndexes(c.Request.Context())
	if err != nil {
		log.Printf("index rebuild failed: %v", err)
		respondError(c, http.StatusInternalServerError, "Index rebuild failed.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": fmt.Sprintf("Rebuilt index for %d user(s).", users)})
}

// registerBody mirrors the wire payload, including the single-event fallback
// fields older clients send.
type registerBody struct {
	Action             string       `json:"action"`
	Email              string       `json:"email"`
	FullName           string       `json:"fullName"`
	Phone              string       `json:"phone"`
	College            string       `json:"college"`
	Department         string       `json:"department"`
	Year               string       `json:"year"`
	SelectedEvents     []eventEntry `json:"selectedEvents"`
	SelectedEvent      string       `json:"selectedEvent"`
	SelectedEventTitle string       `json:"selectedEventTitle"`
	SelectedEventID    string       `json:"selectedEventId"`
	EventID            string       `json:"eventId"`
}

// eventEntry accepts either a bare title string or an object with any of the
// id/title key spellings clients have used.
type eventEntry struct {
	registration.EventRef
}

func (e *eventEntry) UnmarshalJSON(b []byte) error {
	var title string
	if err := json.Unmarshal(b, &title); err == nil {
		e.EventRef = registration.EventRef{Title: title}
		return nil
	}

	var obj struct {
		ID              string `json:"id"`
		EventID         string `json:"eventId"`
		SelectedEventID string `json:"selectedEventId"`
		Title           string `json:"title"`
		Name            string `json:"name"`
		SelectedEvent   string `json:"selectedEvent"`
		EventTitle      string `json:"eventTitle"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.EventRef = registration.EventRef{
		ID:    firstNonEmpty(obj.ID, obj.EventID, obj.SelectedEventID),
		Title: firstNonEmpty(obj.Title, obj.Name, obj.SelectedEvent, obj.EventTitle),
	}
	return nil
}

// Register handles the write path. The action defaults to "register" when the
// body does not name one.
func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "Missing request body.")
		return
	}

	action := strings.ToLower(strings.TrimSpace(body.Action))
	if action == "" {
		action = "register"
	}
	if action != "register" {
		respondError(c, http.StatusBadRequest, "Invalid action.")
		return
	}

	req := registration.Request{
		Email:      body.Email,
		FullName:   body.FullName,
		Phone:      body.Phone,
		College:    body.College,
		Department: body.Department,
		Year:       body.Year,
	}
	for _, entry := range body.SelectedEvents {
		req.Events = append(req.Events, entry.EventRef)
	}
	fallbackTitle := firstNonEmpty(body.SelectedEvent, body.SelectedEventTitle)
	fallbackID := firstNonEmpty(body.SelectedEventID, body.EventID)
	if fallbackTitle != "" || fallbackID != "" {
		req.Events = append(req.Events, registration.EventRef{ID: fallbackID, Title: fallbackTitle})
	}

	result, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, registration.ErrValidation):
			respondError(c, http.StatusBadRequest, "Email and at least one event are required.")
		case errors.Is(err, registration.ErrUnresolvedEvent):
			respondError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, registration.ErrAllDuplicate):
			respondError(c, http.StatusConflict, "You are already registered for the selected event(s).")
		default:
			log.Printf("registration for %s failed: %v", body.Email, err)
			respondError(c, http.StatusInternalServerError, "Registration failed.")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": result.Message})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"status": "error", "message": message})
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
