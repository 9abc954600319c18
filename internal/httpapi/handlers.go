package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nicoespa/MesaYa/internal/models"
	"github.com/nicoespa/MesaYa/internal/queue"
	"github.com/nicoespa/MesaYa/internal/report"
)

type createPartyRequest struct {
	RestaurantID string `json:"restaurant_id" binding:"required"`
	Name         string `json:"name"`
	Phone        string `json:"phone" binding:"required"`
	Size         int    `json:"size"`
	ETAMinutes   *int   `json:"eta_minutes"`
	Notes        string `json:"notes"`
}

func (s *Server) handleCreateParty(c *gin.Context) {
	var req createPartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if err := s.checker.AssertRestaurantAccess(c.Request.Context(), userID(c), req.RestaurantID); err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.queue.Join(c.Request.Context(), queue.JoinRequest{
		RestaurantID: req.RestaurantID,
		Name:         req.Name,
		Phone:        req.Phone,
		Size:         req.Size,
		ETAMinutes:   req.ETAMinutes,
		Notes:        req.Notes,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type updatePartyRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone" binding:"required"`
	Size       int    `json:"size"`
	ETAMinutes *int   `json:"eta_minutes"`
	Notes      string `json:"notes"`
}

func (s *Server) handleUpdateParty(c *gin.Context) {
	party, ok := s.authorizeParty(c)
	if !ok {
		return
	}

	var req updatePartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	updated, err := s.queue.Update(c.Request.Context(), party.ID, queue.UpdateRequest{
		Name:       req.Name,
		Phone:      req.Phone,
		Size:       req.Size,
		ETAMinutes: req.ETAMinutes,
		Notes:      req.Notes,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"party": updated})
}

func (s *Server) handleNotify(c *gin.Context) {
	party, ok := s.authorizeParty(c)
	if !ok {
		return
	}

	result, err := s.queue.Notify(c.Request.Context(), party.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// partyAction wraps the transition endpoints that share the load,
// authorize, transition, respond shape.
func (s *Server) partyAction(action func(ctx context.Context, partyID string) (*models.Party, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		party, ok := s.authorizeParty(c)
		if !ok {
			return
		}

		updated, err := action(c.Request.Context(), party.ID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"party": updated})
	}
}

// authorizeParty loads the party from the :id param and asserts the
// caller works at its restaurant. Writes the error response itself.
func (s *Server) authorizeParty(c *gin.Context) (*models.Party, bool) {
	party, err := s.queue.Party(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	if err := s.checker.AssertRestaurantAccess(c.Request.Context(), userID(c), party.RestaurantID); err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return party, true
}

func (s *Server) handleQueue(c *gin.Context) {
	restaurantID := c.Query("restaurantId")
	if restaurantID == "" {
		badRequest(c, "restaurantId is required")
		return
	}
	if err := s.checker.AssertRestaurantAccess(c.Request.Context(), userID(c), restaurantID); err != nil {
		s.respondError(c, err)
		return
	}

	snapshot, err := s.queue.Snapshot(c.Request.Context(), restaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 90
	historyLimit       = 500
)

func (s *Server) historyWindow(c *gin.Context) (restaurantID string, since time.Time, fromDay, toDay string, ok bool) {
	restaurantID = c.Query("restaurantId")
	if restaurantID == "" {
		badRequest(c, "restaurantId is required")
		return "", time.Time{}, "", "", false
	}
	if err := s.checker.AssertRestaurantAccess(c.Request.Context(), userID(c), restaurantID); err != nil {
		s.respondError(c, err)
		return "", time.Time{}, "", "", false
	}

	days := defaultHistoryDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryDays {
			badRequest(c, "days must be between 1 and 90")
			return "", time.Time{}, "", "", false
		}
		days = parsed
	}

	now := s.now().UTC()
	since = now.AddDate(0, 0, -days)
	return restaurantID, since, since.Format("2006-01-02"), now.Format("2006-01-02"), true
}

func (s *Server) handleHistory(c *gin.Context) {
	restaurantID, since, fromDay, toDay, ok := s.historyWindow(c)
	if !ok {
		return
	}

	parties, err := s.store.ListPartyHistory(c.Request.Context(), restaurantID, since, historyLimit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	daily, err := s.store.ListMetricsRange(c.Request.Context(), restaurantID, fromDay, toDay)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parties": parties, "metrics": daily})
}

func (s *Server) handleHistoryExport(c *gin.Context) {
	restaurantID, since, fromDay, toDay, ok := s.historyWindow(c)
	if !ok {
		return
	}

	restaurant, err := s.store.GetRestaurant(c.Request.Context(), restaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	parties, err := s.store.ListPartyHistory(c.Request.Context(), restaurantID, since, historyLimit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	daily, err := s.store.ListMetricsRange(c.Request.Context(), restaurantID, fromDay, toDay)
	if err != nil {
		s.respondError(c, err)
		return
	}

	filename := report.Filename(restaurant, toDay)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := report.WriteHistory(c.Writer, parties, daily); err != nil {
		s.logger.Error().Err(err).Msg("history export failed")
	}
}

type waitlistRequest struct {
	RestaurantID string `json:"restaurant_id" binding:"required"`
}

func (s *Server) handleOpenWaitlist(c *gin.Context) {
	var req waitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := s.checker.AssertRestaurantAccess(c.Request.Context(), userID(c), req.RestaurantID); err != nil {
		s.respondError(c, err)
		return
	}

	waitlist, err := s.store.OpenWaitlist(c.Request.Context(), req.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"waitlist": waitlist})
}

func (s *Server) handleCloseWaitlist(c *gin.Context) {
	var req waitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := s.checker.AssertRestaurantAccess(c.Request.Context(), userID(c), req.RestaurantID); err != nil {
		s.respondError(c, err)
		return
	}

	waitlist, err := s.store.GetOpenWaitlist(c.Request.Context(), req.RestaurantID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.store.CloseWaitlist(c.Request.Context(), waitlist.ID); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": waitlist.ID})
}
