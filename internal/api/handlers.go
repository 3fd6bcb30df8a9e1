package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldvision/fieldvision/internal/auth"
	"github.com/fieldvision/fieldvision/internal/directory"
	"github.com/fieldvision/fieldvision/internal/models"
	"github.com/fieldvision/fieldvision/internal/services"
)

// healthz reports process liveness, nothing deeper.
func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// issueCommand handles POST /api/v1/commands. Persistence failures surface
// as errors; delivery failures do not, the command is already on record.
func (s *Server) issueCommand(c *gin.Context) {
	var request models.IssueCommandRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if request.TargetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_id is required"})
		return
	}

	issue := services.IssueRequest{
		TargetID: request.TargetID,
		Kind:     models.CommandKind(strings.ToLower(request.Kind)),
	}
	if request.ExpiresInMinutes != nil {
		switch minutes := *request.ExpiresInMinutes; {
		case minutes < 0:
			c.JSON(http.StatusBadRequest, gin.H{"error": services.ErrInvalidExpiry.Error()})
			return
		case minutes == 0:
			issue.NoExpiry = true
		default:
			issue.ExpiresIn = time.Duration(minutes) * time.Minute
		}
	}

	result, err := s.issuer.Issue(c.Request.Context(), issue)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrInvalidKind), errors.Is(err, services.ErrInvalidExpiry):
			status = http.StatusBadRequest
		case errors.Is(err, directory.ErrTargetNotFound):
			status = http.StatusNotFound
		case errors.Is(err, directory.ErrTargetInactive):
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, models.IssueCommandResponse{
		CommandID:  result.Command.ID,
		Delivery:   result.Delivery,
		Superseded: result.Superseded,
		Outcomes:   result.Outcomes,
	})
}

// pendingCommands handles GET /api/v1/commands/pending. The caller only ever
// sees its own queue; the target comes from the token, never the request.
func (s *Server) pendingCommands(c *gin.Context) {
	targetID := auth.SubjectFromContext(c.Request.Context())
	if targetID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": ErrAccessDenied.Error()})
		return
	}

	commands, err := s.fetcher.FetchPending(c.Request.Context(), targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch pending commands"})
		return
	}

	response := models.PendingCommandsResponse{Commands: make([]models.PendingCommand, 0, len(commands))}
	for _, cmd := range commands {
		response.Commands = append(response.Commands, *cmd)
	}
	c.JSON(http.StatusOK, response)
}

// acknowledgeCommands handles POST /api/v1/commands/ack. Unknown, foreign and
// repeated ids are silently skipped, the response counts real transitions.
func (s *Server) acknowledgeCommands(c *gin.Context) {
	targetID := auth.SubjectFromContext(c.Request.Context())
	if targetID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": ErrAccessDenied.Error()})
		return
	}

	var request models.AckRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	updated, err := s.acks.Acknowledge(c.Request.Context(), targetID, request.CommandIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge commands"})
		return
	}
	c.JSON(http.StatusOK, models.AckResponse{UpdatedCount: updated})
}

// targetPresence handles GET /api/v1/targets/:id/presence. A registered
// target nobody has heard from yet reads as offline rather than missing.
func (s *Server) targetPresence(c *gin.Context) {
	targetID := c.Param("id")

	record, ok := s.tracker.Get(targetID)
	if !ok {
		if _, err := s.directory.Lookup(c.Request.Context(), targetID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": directory.ErrTargetNotFound.Error()})
			return
		}
		record = models.PresenceRecord{TargetID: targetID, Status: models.PresenceOffline}
	}
	c.JSON(http.StatusOK, record)
}
