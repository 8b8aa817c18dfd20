package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"StoryStream/internal/broadcast"
	"StoryStream/internal/domain"
	"StoryStream/internal/infrastructure/websocket"
	"StoryStream/internal/logging"
)

// StoryLister returns every stored record, most recent first.
type StoryLister interface {
	ListRecent(ctx context.Context) ([]domain.Record, error)
}

// Scraper runs one ingestion pass on demand.
type Scraper interface {
	Trigger(ctx context.Context) (domain.RunResult, error)
}

// Subscribers accepts and releases live connections.
type Subscribers interface {
	Register(ctx context.Context, conn broadcast.Conn) error
	Unregister(id string)
}

// Deps collects what the HTTP surface needs.
type Deps struct {
	Stories     StoryLister
	Scraper     Scraper
	Subscribers Subscribers
	Gatherer    prometheus.Gatherer
	WebSocket   websocket.Options
	Logger      *slog.Logger
}

type handlers struct {
	stories     StoryLister
	scraper     Scraper
	subscribers Subscribers
	wsOpts      websocket.Options
	logger      *slog.Logger
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Deps) *gin.Engine {
	h := &handlers{
		stories:     deps.Stories,
		scraper:     deps.Scraper,
		subscribers: deps.Subscribers,
		wsOpts:      deps.WebSocket,
		logger:      logging.OrDiscard(deps.Logger),
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", h.health)
	r.GET("/stories", h.listStories)
	r.POST("/scrape", h.scrape)
	r.GET("/ws", h.subscribe)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return r
}

func (h *handlers) health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
