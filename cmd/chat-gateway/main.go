package main

import (
	"github.com/joho/godotenv"

	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/config"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/database"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/event"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/logger"
	"github.com/tradelink-dev/tradelink-go-chat-gateway/internal/server"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.ReadConfig()
	if err != nil {
		logger.FatalF("Error occured while reading config %v", err)
		return
	}
	loggerCallback := logger.Init()
	logger.Debug("Application initializing...")
	cleaner := event.NewCleaner()
	cleaner.Init(loggerCallback)
	err = database.ConnectDatabase()
	if err != nil {
		// no event handling is possible without the shared database
		logger.FatalF("Error occured while initializing database, details: %v", err)
		return
	}
	server.StartServer(cfg.AppPort)
}
