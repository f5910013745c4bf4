package server

import (
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/handlers"
)

type RouterConfig struct {
  InterviewHandler   *handlers.InterviewHandler
  QuestionHandler    *handlers.QuestionHandler
  CalibrationHandler *handlers.CalibrationHandler
  BiasHandler        *handlers.BiasHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  {
    // Sessions
    api.POST("/sessions", cfg.InterviewHandler.StartSession)
    api.GET("/sessions/:id", cfg.InterviewHandler.GetSession)
    api.POST("/sessions/:id/next", cfg.InterviewHandler.NextQuestion)
    api.POST("/sessions/:id/responses", cfg.InterviewHandler.SubmitResponse)
    api.POST("/sessions/:id/cancel", cfg.InterviewHandler.CancelSession)
    // Question bank
    api.POST("/questions", cfg.QuestionHandler.CreateQuestions)
    api.POST("/questions/:id/active", cfg.QuestionHandler.SetActive)
    // Calibration
    api.POST("/calibration/trigger", cfg.CalibrationHandler.Trigger)
    api.GET("/calibration/runs/:id", cfg.CalibrationHandler.GetRun)
    // Bias monitoring
    api.GET("/bias/report", cfg.BiasHandler.GetReport)
    api.POST("/bias/scan/:question_id", cfg.BiasHandler.ScanQuestion)
  }

  return router
}
