// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/okian/matchmaker/pkg/logger"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RosterDependencies
	MatchDependencies
	TaskDependencies
	LearningDependencies
	PerformanceDependencies
	LeaderboardDependencies
	Idempotency
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	rosterHandler      *RosterHandler
	matchHandler       *MatchHandler
	taskHandler        *TaskHandler
	learningHandler    *LearningHandler
	performanceHandler *PerformanceHandler
	leaderboardHandler *LeaderboardHandler
	logger             logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		rosterHandler:      NewRosterHandler(deps),
		matchHandler:       NewMatchHandler(deps),
		taskHandler:        NewTaskHandler(deps, deps),
		learningHandler:    NewLearningHandler(deps),
		performanceHandler: NewPerformanceHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		logger:             logger.Get().Named("http"),
	}
}

// Router builds a chi router with the standard middleware stack and every
// API route. Callers may mount more routes on the result.
func (s *Server) Router(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger(s.logger))
	s.Register(ctx, r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Get("/skills", s.rosterHandler.HandleSkills)
	r.Get("/roles", s.rosterHandler.HandleRoles)
	r.Get("/experience-levels", s.rosterHandler.HandleExperienceLevels)
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", s.rosterHandler.HandleList)
		r.Post("/search", s.rosterHandler.HandleSearch)
		r.Get("/{id}", s.rosterHandler.HandleGet)
	})

	r.Post("/match", s.matchHandler.HandleMatch)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.taskHandler.HandleList)
		r.Post("/", s.taskHandler.HandleCreate)
		r.Get("/{id}", s.taskHandler.HandleGet)
		r.Post("/{id}/progress", s.taskHandler.HandleProgress)
		r.Post("/{id}/complete", s.taskHandler.HandleComplete)
		r.Post("/{id}/reassign", s.taskHandler.HandleReassign)
	})

	r.Post("/learn", s.learningHandler.HandleLearn)
	r.Get("/affinity/{employee_id}", s.learningHandler.HandleAffinity)
	r.Get("/preferences", s.learningHandler.HandleListPreferences)
	r.Put("/preferences/{employee_id}", s.learningHandler.HandlePutPreferences)

	r.Get("/performance", s.performanceHandler.HandleList)
	r.Get("/performance/{employee_id}", s.performanceHandler.HandleGet)

	r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
	r.Get("/leaderboard/{employee_id}", s.leaderboardHandler.HandleGetRank)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError picks the status from err's kind.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// decodeBody reads a size-limited JSON body into v.
func decodeBody(r *http.Request, w http.ResponseWriter, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// decode reads a request struct and runs its validate tags.
func decode(r *http.Request, w http.ResponseWriter, op string, v any) error {
	if err := decodeBody(r, w, op, v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return Wrap(op, err)
		}
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}

// intParam reads a positive integer path parameter.
func intParam(r *http.Request, op, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 1 {
		return 0, WrapKind(op, ErrBadRequest, errors.New(name+" must be a positive integer"))
	}
	return n, nil
}
