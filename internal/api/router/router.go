package router

import (
	"github.com/cuongbtq/review-queue/internal/api/handler"
	"github.com/cuongbtq/review-queue/shared/metrics"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes.
// recorder may be nil, in which case no metrics are collected or served.
func SetupRouter(deps *handler.Dependencies, recorder *metrics.Recorder) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	if recorder != nil {
		r.Use(recorder.GinMiddleware())
		r.GET("/metrics", gin.WrapH(recorder.Handler()))
	}

	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	bookHandler := handler.NewBookHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		books := v1.Group("/books")
		{
			books.GET("", bookHandler.ListBooks)
			books.GET("/:book_id", bookHandler.GetBook)
			books.POST("/:book_id/reviews", bookHandler.AddReview)
		}

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}
