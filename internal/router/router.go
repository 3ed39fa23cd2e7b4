package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/evotodo/todo-api/docs"
	"github.com/evotodo/todo-api/internal/config"
	"github.com/evotodo/todo-api/internal/middleware"
	"github.com/evotodo/todo-api/internal/modules/handler"
	"github.com/evotodo/todo-api/internal/modules/serializer"
	"github.com/evotodo/todo-api/internal/pkg/utils/tokens"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config      *config.Config
	Log         *zap.Logger
	Verifier    *tokens.Verifier
	TaskHandler *handler.TaskHandler
	ChatHandler *handler.ChatHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	// Add OpenTelemetry middleware if enabled (using configuration system)
	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		// Add trace ID to response header
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))
	r.Use(cors.New(corsConfig(d.Config.App.AllowOrigins)))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/:user_id")
	{
		// unauthenticated, like the rest of the health checks
		api.GET("/chat/health", d.ChatHandler.Health)

		user := api.Group("")
		user.Use(middleware.UserAuth(d.Verifier))

		chat := user.Group("/chat")
		{
			chat.POST("", d.ChatHandler.Chat)
			chat.POST("/stream", d.ChatHandler.ChatStream)

			chat.GET("/conversations", d.ChatHandler.ListConversations)
			chat.GET("/conversations/:conversation_id/messages", d.ChatHandler.GetMessages)
			chat.DELETE("/conversations/:conversation_id", d.ChatHandler.DeleteConversation)
		}

		task := user.Group("/tasks")
		{
			task.GET("", d.TaskHandler.ListTasks)
			task.POST("", d.TaskHandler.CreateTask)

			task.GET("/stats", d.TaskHandler.Stats)

			task.POST("/bulk/delete", d.TaskHandler.BulkDelete)
			task.POST("/bulk/complete", d.TaskHandler.BulkComplete)

			task.GET("/export/csv", d.TaskHandler.ExportCSV)
			task.GET("/export/json", d.TaskHandler.ExportJSON)
			task.POST("/export/snapshot", d.TaskHandler.ExportSnapshot)
			task.POST("/import/json", d.TaskHandler.ImportJSON)

			task.GET("/:task_id", d.TaskHandler.GetTask)
			task.PUT("/:task_id", d.TaskHandler.UpdateTask)
			task.DELETE("/:task_id", d.TaskHandler.DeleteTask)
			task.PATCH("/:task_id/complete", d.TaskHandler.ToggleComplete)
		}
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Disposition", middleware.HeaderRequestID, "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
