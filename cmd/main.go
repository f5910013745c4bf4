package main

import (
  "context"
  "fmt"
  "os"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/bank"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/clients/redis"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/config"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/db"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/handlers"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/jobs"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/logger"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/repos"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/scoring"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/server"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/services"
  "github.com/PrajwalRV1/aria-adaptive-engine/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Policy
  log.Info("Loading engine policy from main...")
  policy, err := config.Load(log)
  if err != nil {
    log.Error("Invalid engine policy", "error", err)
    os.Exit(1)
  }

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  questionRepo := repos.NewQuestionRepo(thePG, log)
  sessionRepo := repos.NewSessionRepo(thePG, log)
  responseRepo := repos.NewResponseRepo(thePG, log)
  effectivenessRepo := repos.NewEffectivenessRepo(thePG, log)
  biasResultRepo := repos.NewBiasResultRepo(thePG, log)
  calibrationRunRepo := repos.NewCalibrationRunRepo(thePG, log)

  ctx := context.Background()

  // Item bank
  log.Info("Loading item bank snapshot from main...")
  bankStore := bank.NewStore(questionRepo, log)
  if _, err := bankStore.Refresh(ctx); err != nil {
    log.Error("Item bank load failed", "error", err)
    os.Exit(1)
  }

  // Exposure tallies: shared via redis when available, in-process otherwise.
  var tallies bank.TallyStore
  redisTallies, err := redis.NewTallyStore(log)
  if err != nil {
    log.Warn("Redis init failed, exposure tallies are process-local", "error", err)
    tallies = bank.NewMemoryTallyStore()
  } else {
    tallies = redisTallies
  }
  exposure := bank.NewExposureController(tallies)

  // Services
  log.Info("Setting up Services from main...")
  scorers := scoring.NewRegistry()
  pipeline := services.NewEffectivenessPipeline(effectivenessRepo, log)
  pipeline.Start(ctx)
  watcher := services.NewCalibrationWatcher(calibrationRunRepo, policy, log)
  interviewService := services.NewInterviewService(
    thePG,
    log,
    policy,
    sessionRepo,
    questionRepo,
    responseRepo,
    bankStore,
    exposure,
    scorers,
    pipeline,
    watcher,
  )
  questionBankService := services.NewQuestionBankService(thePG, log, questionRepo, bankStore)
  calibrationService := services.NewCalibrationService(thePG, log, policy, questionRepo, responseRepo, effectivenessRepo, calibrationRunRepo, bankStore)
  biasService := services.NewBiasService(thePG, log, policy, questionRepo, responseRepo, biasResultRepo)

  // Batch worker
  log.Info("Setting up batch worker from main...")
  registry := jobs.NewRegistry()
  if err := registry.Register(jobs.NewCalibrationHandler(calibrationService)); err != nil {
    log.Error("Handler registration failed", "error", err)
    os.Exit(1)
  }
  if err := registry.Register(jobs.NewBiasScanHandler(biasService)); err != nil {
    log.Error("Handler registration failed", "error", err)
    os.Exit(1)
  }
  worker := jobs.NewWorker(thePG, log, calibrationRunRepo, registry)
  worker.Start(ctx)
  if policy.AutoCalibration {
    scheduler := jobs.NewScheduler(calibrationRunRepo, responseRepo, policy, log)
    scheduler.Start(ctx)
  } else {
    log.Info("Auto calibration disabled, runs enqueue via the API only")
  }

  // Handlers
  log.Info("Setting up handlers from main...")
  interviewHandler := handlers.NewInterviewHandler(log, interviewService)
  questionHandler := handlers.NewQuestionHandler(log, questionBankService)
  calibrationHandler := handlers.NewCalibrationHandler(log, calibrationService)
  biasHandler := handlers.NewBiasHandler(log, biasService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    InterviewHandler:   interviewHandler,
    QuestionHandler:    questionHandler,
    CalibrationHandler: calibrationHandler,
    BiasHandler:        biasHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
