package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/St1cky1/vfx-tracker/internal/api/handlers"
	"github.com/St1cky1/vfx-tracker/internal/usecase"
)

// Services is everything the HTTP surface serves.
type Services struct {
	Shows     *usecase.ShowService
	Shots     *usecase.ShotService
	Tasks     *usecase.TaskService
	Feedback  *usecase.FeedbackService
	ChangeLog *usecase.ChangeLogService
	Undo      *usecase.UndoEngine
	// Health reports backing store readiness for /healthz. Optional.
	Health func(ctx context.Context) error
}

func NewRouter(svc Services, logger *zap.Logger) *chi.Mux {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	showHandler := handlers.NewShowHandler(svc.Shows, logger)
	shotHandler := handlers.NewShotHandler(svc.Shots, logger)
	taskHandler := handlers.NewTaskHandler(svc.Tasks, logger)
	feedbackHandler := handlers.NewFeedbackHandler(svc.Feedback, logger)
	logHandler := handlers.NewChangeLogHandler(svc.ChangeLog, svc.Undo, logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Health != nil {
			if err := svc.Health(r.Context()); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/shows", func(r chi.Router) {
			r.Get("/", showHandler.ListShows)
			r.Post("/", showHandler.CreateShow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", showHandler.GetShow)
				r.Patch("/", showHandler.UpdateShow)
				r.Delete("/", showHandler.DeleteShow)
			})
		})
		r.Route("/shots", func(r chi.Router) {
			r.Get("/", shotHandler.ListShots)
			r.Post("/", shotHandler.CreateShot)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", shotHandler.GetShot)
				r.Patch("/", shotHandler.UpdateShot)
				r.Delete("/", shotHandler.DeleteShot)
			})
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Patch("/", taskHandler.UpdateTask)
				r.Delete("/", taskHandler.DeleteTask)
			})
		})
		r.Route("/feedback", func(r chi.Router) {
			r.Get("/", feedbackHandler.ListFeedback)
			r.Post("/", feedbackHandler.CreateFeedback)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", feedbackHandler.GetFeedback)
				r.Patch("/", feedbackHandler.UpdateFeedback)
				r.Delete("/", feedbackHandler.DeleteFeedback)
			})
		})
		r.Route("/changelog", func(r chi.Router) {
			r.Get("/", logHandler.ListEntries)
			r.Post("/undo", logHandler.Undo)
			r.Get("/{id}", logHandler.GetEntry)
			r.Post("/{id}/undo", logHandler.UndoByPath)
		})
	})

	return r
}

// requestLogger emits one structured line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
