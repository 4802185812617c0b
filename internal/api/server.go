package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cschnabel/mplog/internal/db"
	"github.com/cschnabel/mplog/internal/ingest"
	"github.com/cschnabel/mplog/internal/log"
	"github.com/cschnabel/mplog/internal/metrics"
	"github.com/cschnabel/mplog/internal/model"
)

type Server struct {
	store        *db.Store
	parser       *ingest.Parser
	metrics      *metrics.Metrics
	maxBodyBytes int64
	router       *gin.Engine
}

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    any    `json:"data,omitempty"`
}

// GameView is a stored game plus the derived values a viewer needs.
type GameView struct {
	model.Game
	TabKey           string           `json:"tabKey"`
	DurationSeconds  float64          `json:"durationSeconds"`
	RenumberedBlinds []model.PvpBlind `json:"renumberedBlinds"`
	ShopSlots        []model.ShopSlot `json:"shopSlots"`
}

type ParseResponse struct {
	RunID  string           `json:"runId"`
	Status model.RunStatus  `json:"status"`
	Stats  model.ParseStats `json:"stats"`
	Games  []GameView       `json:"games"`
}

func NewServer(store *db.Store, parser *ingest.Parser, m *metrics.Metrics, maxBodyBytes int64) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		store:        store,
		parser:       parser,
		metrics:      m,
		maxBodyBytes: maxBodyBytes,
		router:       gin.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), requestLogger(), cors())

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.POST("/parse", s.handleParse)
	api.GET("/runs", s.handleRuns)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/games/:n", s.handleGame)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func respondError(c *gin.Context, code int, message string, details string) {
	msg := message
	if details != "" {
		msg = message + ": " + details
	}
	if code >= http.StatusInternalServerError {
		log.Error("http error", "status", code, "msg", msg)
	}
	c.JSON(code, APIResponse{Success: false, Msg: msg})
}

func respondSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Msg: "ok", Data: data})
}

func newGameView(g model.Game) GameView {
	return GameView{
		Game:             g,
		TabKey:           g.TabKey(),
		DurationSeconds:  g.DurationSeconds(),
		RenumberedBlinds: g.RenumberedBlinds(),
		ShopSlots:        g.ShopSlots(),
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	respondSuccess(c, gin.H{"status": "ok"})
}

// handleParse parses the raw request body as a log. An empty log is a
// successful no_games run; a crashed parse is stored and answered with 422.
func (s *Server) handleParse(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
	source := strings.TrimSpace(c.Query("source"))

	res, parseErr := s.parser.Parse(c.Request.Context(), body)
	res.Stats.Source = source

	var tooLarge *http.MaxBytesError
	if errors.As(parseErr, &tooLarge) {
		respondError(c, http.StatusRequestEntityTooLarge, "log too large", strconv.FormatInt(tooLarge.Limit, 10)+" bytes max")
		return
	}

	s.metrics.Observe(res)

	runID, err := s.store.SaveRun(c.Request.Context(), db.RunRecord{
		Source: source,
		Status: res.Status,
		Stats:  res.Stats,
		Games:  res.Games,
		Err:    parseErr,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "store run", err.Error())
		return
	}

	out := ParseResponse{
		RunID:  runID,
		Status: res.Status,
		Stats:  res.Stats,
		Games:  make([]GameView, 0, len(res.Games)),
	}
	for _, g := range res.Games {
		out.Games = append(out.Games, newGameView(g))
	}

	if parseErr != nil {
		log.Warn("parse failed", "run", runID, "error", parseErr)
		c.JSON(http.StatusUnprocessableEntity, APIResponse{Success: false, Msg: parseErr.Error(), Data: out})
		return
	}
	respondSuccess(c, out)
}

func (s *Server) handleRuns(c *gin.Context) {
	limit := int64(50)
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			limit = v
		}
	}
	rows, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "list runs", err.Error())
		return
	}
	respondSuccess(c, rows)
}

func (s *Server) handleRunDetail(c *gin.Context) {
	out, err := s.store.GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "run not found", "")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "get run", err.Error())
		return
	}
	respondSuccess(c, out)
}

func (s *Server) handleGame(c *gin.Context) {
	gameNo, err := strconv.ParseInt(c.Param("n"), 10, 64)
	if err != nil || gameNo <= 0 {
		respondError(c, http.StatusBadRequest, "invalid game number", "")
		return
	}

	g, err := s.store.GetGame(c.Request.Context(), c.Param("id"), gameNo)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "game not found", "")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "get game", err.Error())
		return
	}
	respondSuccess(c, newGameView(g))
}
