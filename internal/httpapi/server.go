// Package httpapi exposes the waitlist service over HTTP. Handlers
// are thin: bind input, check access, call the core, serialize the
// result.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nicoespa/MesaYa/internal/access"
	"github.com/nicoespa/MesaYa/internal/models"
	"github.com/nicoespa/MesaYa/internal/queue"
)

// Queue is the engine surface the handlers call.
type Queue interface {
	Join(ctx context.Context, req queue.JoinRequest) (*queue.JoinResult, error)
	Notify(ctx context.Context, partyID string) (*queue.TransitionResult, error)
	OnTheWay(ctx context.Context, partyID string) (*models.Party, error)
	Seat(ctx context.Context, partyID string) (*models.Party, error)
	NoShow(ctx context.Context, partyID string) (*models.Party, error)
	Cancel(ctx context.Context, partyID string) (*models.Party, error)
	Update(ctx context.Context, partyID string, req queue.UpdateRequest) (*models.Party, error)
	Party(ctx context.Context, partyID string) (*models.Party, error)
	Snapshot(ctx context.Context, restaurantID string) (*queue.Snapshot, error)
	StatusByToken(ctx context.Context, token string) (*queue.Status, error)
	StatusAction(ctx context.Context, token, action string) (*models.Party, error)
}

// Verifier is the phone verification surface.
type Verifier interface {
	SendCode(ctx context.Context, clientIP, rawPhone string) (int, error)
	ConfirmCode(ctx context.Context, rawPhone, code string) (bool, error)
}

// Store covers the lookups the handlers need outside the engine.
type Store interface {
	GetRestaurant(ctx context.Context, id string) (*models.Restaurant, error)
	GetRestaurantBySlug(ctx context.Context, slug string) (*models.Restaurant, error)
	GetOpenWaitlist(ctx context.Context, restaurantID string) (*models.Waitlist, error)
	OpenWaitlist(ctx context.Context, restaurantID string) (*models.Waitlist, error)
	CloseWaitlist(ctx context.Context, id string) error
	ListPartyHistory(ctx context.Context, restaurantID string, since time.Time, limit int) ([]models.Party, error)
	ListMetricsRange(ctx context.Context, restaurantID, fromDay, toDay string) ([]models.MetricsDaily, error)
}

// Server holds the handler dependencies.
type Server struct {
	queue     Queue
	verifier  Verifier
	store     Store
	checker   access.Checker
	jwtSecret []byte
	logger    zerolog.Logger
	now       func() time.Time
}

// NewServer wires the HTTP layer.
func NewServer(q Queue, verifier Verifier, store Store, checker access.Checker, jwtSecret []byte, logger zerolog.Logger) *Server {
	return &Server{
		queue:     q,
		verifier:  verifier,
		store:     store,
		checker:   checker,
		jwtSecret: jwtSecret,
		logger:    logger.With().Str("component", "http").Logger(),
		now:       time.Now,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api")

	// Public surface: status pages and the join form flow.
	api.GET("/status/:token", s.handleStatus)
	api.POST("/status/:token", s.handleStatusAction)
	api.POST("/verify/send", s.handleVerifySend)
	api.POST("/verify/confirm", s.handleVerifyConfirm)
	api.GET("/join/:slug", s.handleJoinLookup)

	staff := api.Group("", AuthRequired(s.jwtSecret))
	staff.POST("/party", s.handleCreateParty)
	staff.PUT("/party/:id", s.handleUpdateParty)
	staff.POST("/party/:id/notify", s.handleNotify)
	staff.POST("/party/:id/on-the-way", s.partyAction(func(ctx context.Context, id string) (*models.Party, error) {
		return s.queue.OnTheWay(ctx, id)
	}))
	staff.POST("/party/:id/seated", s.partyAction(func(ctx context.Context, id string) (*models.Party, error) {
		return s.queue.Seat(ctx, id)
	}))
	staff.POST("/party/:id/no-show", s.partyAction(func(ctx context.Context, id string) (*models.Party, error) {
		return s.queue.NoShow(ctx, id)
	}))
	staff.POST("/party/:id/cancel", s.partyAction(func(ctx context.Context, id string) (*models.Party, error) {
		return s.queue.Cancel(ctx, id)
	}))
	staff.GET("/queue", s.handleQueue)
	staff.GET("/history", s.handleHistory)
	staff.GET("/history/export", s.handleHistoryExport)
	staff.POST("/waitlist/open", s.handleOpenWaitlist)
	staff.POST("/waitlist/close", s.handleCloseWaitlist)

	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
