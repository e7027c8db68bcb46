package web

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"coinboard/internal/metrics"
	"coinboard/internal/models"
	"coinboard/internal/page"
	"coinboard/internal/view"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	errCoinNotFound    = errors.New("coin not found")
	errSessionRequired = errors.New("no session; open the page first")
)

// StatsProvider exposes upstream client statistics on /health
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Handler serves the market page and its API
type Handler struct {
	sessions   *SessionStore
	currencies []models.Currency
	stats      StatsProvider
	version    string
	startTime  time.Time
	logger     *logrus.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates a new HTTP handler. stats may be nil.
func NewHandler(sessions *SessionStore, currencies []models.Currency, stats StatsProvider, version string, logger *logrus.Logger) *Handler {
	return &Handler{
		sessions:   sessions,
		currencies: currencies,
		stats:      stats,
		version:    version,
		startTime:  time.Now(),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// SetupRoutes builds the gin engine with every route registered
func (h *Handler) SetupRoutes(sessionMaxAge time.Duration) *gin.Engine {
	router := gin.New()
	router.Use(requestIDMiddleware(), loggerMiddleware(h.logger), gin.Recovery())
	router.SetHTMLTemplate(view.Templates())

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/", openSession(h.sessions, sessionMaxAge), h.renderPage)

	// Form actions without a session go back to the page, which opens one.
	actions := router.Group("/", requireSession(h.sessions, sessionMaxAge, redirectHome))
	{
		actions.POST("/search", h.search)
		actions.POST("/sort", h.toggleSort)
		actions.POST("/currency", h.changeCurrency)
		actions.GET("/select/:id", h.selectCoin)
		actions.GET("/close", h.closeModal)
	}

	router.GET("/ws", requireSession(h.sessions, sessionMaxAge, h.sessionRequired), h.liveRefresh)

	api := router.Group("/api/v1", requireSession(h.sessions, sessionMaxAge, h.sessionRequired))
	{
		api.GET("/coins", h.listCoins)
	}

	return router
}

func controllerFrom(c *gin.Context) *page.Controller {
	return c.MustGet(controllerCtxKey).(*page.Controller)
}

func redirectHome(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) sessionRequired(c *gin.Context) {
	h.handleError(c, http.StatusUnauthorized, errSessionRequired)
}

func (h *Handler) renderPage(c *gin.Context) {
	snap := controllerFrom(c).Snapshot()
	metrics.TrackRender("page")
	c.HTML(http.StatusOK, "page", view.NewPageData(snap, h.currencies))
}

func (h *Handler) search(c *gin.Context) {
	controllerFrom(c).OnSearch(c.PostForm("q"))
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) toggleSort(c *gin.Context) {
	controllerFrom(c).OnToggleSort()
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) changeCurrency(c *gin.Context) {
	currency, err := models.ParseCurrency(c.PostForm("currency"))
	if err == nil && !slices.Contains(h.currencies, currency) {
		err = models.ErrUnsupportedCurrency
	}
	if err != nil {
		h.handleError(c, http.StatusBadRequest, err)
		return
	}

	controllerFrom(c).OnCurrencyChange(currency)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) selectCoin(c *gin.Context) {
	controller := controllerFrom(c)

	coin, ok := controller.Find(c.Param("id"))
	if !ok {
		h.handleError(c, http.StatusNotFound, errCoinNotFound)
		return
	}

	controller.OnSelectCoin(coin)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) closeModal(c *gin.Context) {
	controllerFrom(c).OnCloseModal()
	c.Redirect(http.StatusSeeOther, "/")
}

type coinsResponse struct {
	Currency   models.Currency      `json:"currency"`
	SearchTerm string               `json:"searchTerm"`
	SortOrder  models.SortOrder     `json:"sortOrder"`
	Selected   *models.CoinSummary  `json:"selected"`
	Coins      []models.CoinSummary `json:"coins"`
	Total      int                  `json:"total"`
	Generation uint64               `json:"generation"`
}

func (h *Handler) listCoins(c *gin.Context) {
	snap := controllerFrom(c).Snapshot()
	metrics.TrackRender("api")

	c.JSON(http.StatusOK, coinsResponse{
		Currency:   snap.State.Currency,
		SearchTerm: snap.State.SearchTerm,
		SortOrder:  snap.State.SortOrder,
		Selected:   snap.State.Selected,
		Coins:      snap.Coins,
		Total:      snap.TotalCoins,
		Generation: snap.Generation,
	})
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"sessions":       h.sessions.Len(),
	}
	if h.stats != nil {
		resp["upstream"] = h.stats.GetStats()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) handleError(c *gin.Context, status int, err error) {
	requestID := c.GetString(RequestIDContextKey)
	h.logger.WithError(err).WithFields(logrus.Fields{
		"request_id": requestID,
		"path":       c.Request.URL.Path,
	}).Warn("Request rejected")

	c.JSON(status, gin.H{
		"error":      err.Error(),
		"request_id": requestID,
	})
}
