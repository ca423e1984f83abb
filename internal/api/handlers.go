package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"vaultbot/internal/vaults"
	"vaultbot/pkg/logx"
)

type eventResponse struct {
	EventID         string    `json:"event_id"`
	TransactionHash string    `json:"transaction_hash"`
	RecordedAt      time.Time `json:"recorded_at"`
}

type createEventRequest struct {
	EventID         string `json:"event_id"`
	TransactionHash string `json:"transaction_hash"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listSubscribers(c *gin.Context) {
	ids, err := s.store.ListSubscriberIDs(c.Request.Context())
	if err != nil {
		s.log.Error("list subscribers failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, ids)
}

func (s *Server) removeSubscriber(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscriber id"})
		return
	}
	removed, err := s.store.RemoveSubscriber(c.Request.Context(), id)
	if err != nil {
		s.log.Error("remove subscriber failed", logx.Int64("chat_id", id), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getEvent(c *gin.Context) {
	ev, ok, err := s.store.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.Error("get event failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, eventResponse{
		EventID:         ev.EventID,
		TransactionHash: ev.TransactionHash,
		RecordedAt:      ev.RecordedAt,
	})
}

func (s *Server) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if req.EventID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_id required"})
		return
	}

	ev, inserted, err := s.store.InsertEvent(c.Request.Context(), req.EventID, req.TransactionHash)
	if err != nil {
		s.log.Error("create event failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}
	if !inserted {
		c.JSON(http.StatusConflict, gin.H{"error": "event already recorded"})
		return
	}
	c.JSON(http.StatusCreated, eventResponse{
		EventID:         ev.EventID,
		TransactionHash: ev.TransactionHash,
		RecordedAt:      ev.RecordedAt,
	})
}

// enqueueRebalance injects a raw rebalance payload into the durable
// queue (webhook-style producer). Validation beyond the id is left to
// the pipeline, which is where a malformed payload is rejected anyway.
func (s *Server) enqueueRebalance(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue disabled"})
		return
	}
	var payload vaults.RebalancePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}
	if payload.RebalanceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rebalance_id required"})
		return
	}
	if err := s.queue.Enqueue(c.Request.Context(), &payload); err != nil {
		s.log.Error("enqueue failed", logx.String("event", payload.RebalanceID), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enqueue failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"event_id": payload.RebalanceID})
}
