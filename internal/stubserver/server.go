package stubserver

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"github.com/spigell/atsctl/internal/ai"
	"github.com/spigell/atsctl/internal/ats"
	"github.com/spigell/atsctl/internal/logger"
	"github.com/spigell/atsctl/internal/pipeline"
)

const (
	requestIDHeader = "X-Request-ID"

	// DefaultMatchThreshold drops matches that share almost nothing with the query.
	DefaultMatchThreshold = 0.1
)

type Options struct {
	Logger *zap.Logger
	// Structurer defaults to the heuristic parser.
	Structurer     ai.Structurer
	MatchThreshold float64
	// DisabledStages are reported as disabled and skipped by every run.
	DisabledStages []string
}

// Server is an in-process backend speaking the same HTTP contract as the
// real service.
type Server struct {
	app       *fiber.App
	store     *Store
	stages    []pipeline.Stage
	deps      pipeline.Deps
	logger    *zap.Logger
	threshold float64
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	threshold := opts.MatchThreshold
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}

	stages := pipeline.Default()
	for _, name := range opts.DisabledStages {
		pipeline.DisableByName(stages, name, "disabled by configuration")
	}

	store := NewStore()
	s := &Server{
		store:     store,
		stages:    stages,
		logger:    log,
		threshold: threshold,
		deps: pipeline.Deps{
			Logger:     log,
			Structurer: opts.Structurer,
			Store:      store,
		},
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		BodyLimit:             int(2 * ats.MaxUploadSize),
		DisableStartupMessage: true,
	})
	s.app.Use(s.logRequests)
	s.app.Use(compress.New())
	s.routes()

	return s
}

func (s *Server) routes() {
	var (
		cv       = s.app.Group("/api/cv")
		matching = s.app.Group("/api/matching")
		demo     = s.app.Group("/api/demo")
		scoring  = s.app.Group("/api/scoring")
	)

	cv.Post("/ingest", s.handleIngest)
	cv.Get("/search", s.handleSearch)
	cv.Get("/:id", s.handleGet)
	cv.Delete("/:id", s.handleDelete)

	matching.Post("/semantic", s.handleSemantic)

	demo.Get("/load", s.handleDemoLoad)
	demo.Get("/status", s.handleDemoStatus)
	demo.Get("/job-offers", s.handleJobOffers)

	scoring.Post("/candidates", s.handleScoring)

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	started := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var apiErr Error
	if errors.As(err, &apiErr) {
		status = apiErr.Code
	}

	log := logger.WithFields(s.logger, logger.RequestFields(c.Method(), c.OriginalURL(), c.Get(requestIDHeader))...)
	log.Info("request handled",
		zap.Int(logger.FieldStatus, status),
		zap.Duration(logger.FieldDuration, time.Since(started)),
	)
	return err
}

// Store exposes the backing documents.
func (s *Server) Store() *Store {
	return s.store
}

// Stages lists the processing stages with their state.
func (s *Server) Stages() []pipeline.Status {
	return pipeline.Describe(s.stages)
}

// Start serves on ln in the background and returns the base URL.
func (s *Server) Start(ln net.Listener) string {
	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.logger.Error("stub server stopped", zap.Error(err))
		}
	}()
	return "http://" + ln.Addr().String()
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
