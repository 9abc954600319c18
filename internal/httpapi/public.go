package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.queue.StatusByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type statusActionRequest struct {
	Action string `json:"action" binding:"required"`
}

func (s *Server) handleStatusAction(c *gin.Context) {
	var req statusActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "action is required")
		return
	}

	party, err := s.queue.StatusAction(c.Request.Context(), c.Param("token"), req.Action)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"party": party})
}

type verifySendRequest struct {
	Phone string `json:"phone" binding:"required"`
}

func (s *Server) handleVerifySend(c *gin.Context) {
	var req verifySendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone is required")
		return
	}

	expiresIn, err := s.verifier.SendCode(c.Request.Context(), c.ClientIP(), req.Phone)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true, "expires_in": expiresIn})
}

type verifyConfirmRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func (s *Server) handleVerifyConfirm(c *gin.Context) {
	var req verifyConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "phone and code are required")
		return
	}

	verified, err := s.verifier.ConfirmCode(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": verified})
}

// handleJoinLookup resolves the join form's restaurant by slug. Public
// fields only.
func (s *Server) handleJoinLookup(c *gin.Context) {
	restaurant, err := s.store.GetRestaurantBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	open := true
	if _, err := s.store.GetOpenWaitlist(c.Request.Context(), restaurant.ID); err != nil {
		open = false
	}

	c.JSON(http.StatusOK, gin.H{
		"restaurant": gin.H{
			"id":   restaurant.ID,
			"slug": restaurant.Slug,
			"name": restaurant.Name,
		},
		"open": open,
	})
}
