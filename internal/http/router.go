package http

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/mercadomm/orders-backend/internal/data/repos"
	"github.com/mercadomm/orders-backend/internal/http/handlers"
	"github.com/mercadomm/orders-backend/internal/http/middleware"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/realtime"
	"github.com/mercadomm/orders-backend/internal/services"
)

type RouterConfig struct {
	Log *logger.Logger
	DB  *gorm.DB
	Hub *realtime.Hub

	Customers repos.CustomerRepo
	Messages  repos.InboundMessageRepo
	Drafts    repos.DraftRepo
	Links     repos.DraftMessageRepo
	Orders    repos.OrderRepo

	Engine  services.DraftEngine
	Actions services.OrderActions
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production") {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("orders-backend"))
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.CORS())

	health := handlers.NewHealthHandler(cfg.Log, cfg.DB)
	r.GET("/healthcheck", health.Healthcheck)

	if cfg.Engine != nil {
		msg := handlers.NewMessageHandler(cfg.Log, cfg.Engine)
		r.POST("/webhooks/twilio", msg.TwilioWebhook)

		auth := middleware.NewAdminAuth(cfg.Log)
		api := r.Group("/api", auth.Require())

		api.POST("/messages", msg.Ingest)

		if cfg.Drafts != nil && cfg.Actions != nil {
			draft := handlers.NewDraftHandler(cfg.Log, cfg.Drafts, cfg.Links, cfg.Actions)
			api.GET("/drafts", draft.List)
			api.GET("/drafts/:id", draft.Get)
			api.POST("/drafts/:id/cancel", draft.Cancel)
			api.POST("/drafts/:id/finalize", draft.Finalize)
			api.POST("/drafts/:id/ask", draft.Ask)
		}
		if cfg.Orders != nil && cfg.Actions != nil {
			order := handlers.NewOrderHandler(cfg.Log, cfg.Orders, cfg.Actions)
			api.GET("/orders", order.List)
			api.GET("/orders/:id", order.Get)
			api.GET("/orders/:id/history", order.History)
			api.POST("/orders/:id/cancel", order.Cancel)
			api.POST("/orders/:id/status", order.MoveStatus)
			api.POST("/orders/:id/ask", order.Ask)
		}
		if cfg.Customers != nil {
			customer := handlers.NewCustomerHandler(cfg.Log, cfg.Customers, cfg.Messages)
			api.GET("/customers", customer.List)
			api.GET("/customers/:id", customer.Get)
			api.GET("/customers/:id/messages", customer.Messages)
		}
		if cfg.Hub != nil {
			rt := handlers.NewRealtimeHandler(cfg.Log, cfg.Hub)
			api.GET("/events", rt.Stream)
		}
	}

	return r
}
