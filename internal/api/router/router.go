package router

import (
	"net/http"

	"github.com/crosslister/dispatch-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes.
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", func(c *gin.Context) {
		if err := deps.DBClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		if !deps.RabbitClient.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "message broker unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "dispatch-api-service",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	extHandler := handler.NewExtensionHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a dispatch job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job status
			jobs.GET("/:job_id", jobHandler.GetJobStatus)
		}

		extension := v1.Group("/extension")
		{
			// POST /api/v1/extension/register - Extension announces presence
			extension.POST("/register", extHandler.Register)

			// POST /api/v1/extension/poll - Extension claims new jobs
			extension.POST("/poll", extHandler.Poll)
		}

		connections := v1.Group("/connections")
		{
			// POST /api/v1/connections/credentials - Store marketplace credentials
			connections.POST("/credentials", extHandler.SaveCredentials)
		}
	}

	return r
}
