package main

import (
	"log"

	"echoflow/internal/app"
	"echoflow/internal/config"
	"echoflow/internal/utils"

	"go.uber.org/zap"
)

// @title EchoFlow API
// @version 1.0
// @description Chat threads with an AI assistant, live updates over websocket and public read-only shares.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	bootLogger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	utils.LoadEnv(bootLogger)

	cfg := config.LoadConfig()

	logger, err := utils.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Config loaded",
		zap.String("server_port", cfg.ServerPort),
		zap.String("db_host", cfg.DBHost),
		zap.String("redis_url", cfg.RedisURL),
		zap.String("llm_model", cfg.LLMChatModel),
		zap.String("env", cfg.Env),
	)

	if err := app.Serve(&cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
}
