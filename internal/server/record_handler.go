package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/frontdesk/guestlog/internal/models"
	"github.com/frontdesk/guestlog/internal/service"
	"github.com/frontdesk/guestlog/pkg/errors"
)

type RecordHandler struct {
	recordService *service.RecordService
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(recordService *service.RecordService) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
	}
}

// Reasons returns the fixed restriction reason allow-list
func (h *RecordHandler) Reasons(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reasons": models.BanReasons})
}

// List returns records matching the query filters
func (h *RecordHandler) List(c *gin.Context) {
	filters := models.RecordListFilters{
		Status:  models.BanStatus(c.Query("status")),
		BanType: models.BanType(c.Query("ban_type")),
		Search:  c.Query("search"),
		Sort:    c.Query("sort"),
		Dir:     c.Query("dir"),
	}

	records, err := h.recordService.List(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}

// Get returns one record with its full timeline
func (h *RecordHandler) Get(c *gin.Context) {
	id, err := recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	record, err := h.recordService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// Create adds a new ban record
func (h *RecordHandler) Create(c *gin.Context) {
	user := currentUser(c)

	var req models.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewAppError(errors.ErrInvalidInput, "Invalid request body", http.StatusBadRequest))
		return
	}

	record, err := h.recordService.Create(c.Request.Context(), user.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": record.ID})
}

// AddNote appends a staff note to a record's timeline
func (h *RecordHandler) AddNote(c *gin.Context) {
	user := currentUser(c)

	id, err := recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req models.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.NewAppError(errors.ErrInvalidInput, "Invalid request body", http.StatusBadRequest))
		return
	}

	entry, err := h.recordService.AddNote(c.Request.Context(), user.ID, id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// Lift attempts the manager-authorized lift of a ban
func (h *RecordHandler) Lift(c *gin.Context) {
	user := currentUser(c)

	id, err := recordID(c)
	if err != nil {
		// A malformed id must look like any other rejected lift
		respondError(c, errors.ErrUnableToProcess)
		return
	}

	var req models.LiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.ErrUnableToProcess)
		return
	}

	if err := h.recordService.Lift(c.Request.Context(), user.ID, id, &req, c.ClientIP()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Ban lifted"})
}

func recordID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, errors.NewAppError(errors.ErrInvalidInput, "Invalid record id", http.StatusBadRequest)
	}
	return id, nil
}
