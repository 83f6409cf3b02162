package main

import (
	"context"
	"net/http"
	"os"

	"github.com/covestack/covestack/config/database"
	"github.com/covestack/covestack/internal/code"
	"github.com/covestack/covestack/internal/files"
	"github.com/covestack/covestack/pkg/logger"
	"github.com/covestack/covestack/router"
	"github.com/covestack/covestack/socket"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}
	logger.Init()

	db := database.Connect()
	defer db.Close()

	snapshots, err := code.NewStore()
	if err != nil {
		logger.Sugar.Fatalf("Failed to initialize snapshot store: %v", err)
	}

	storage, err := files.NewStorageFromEnv(context.Background())
	if err != nil {
		logger.Sugar.Fatalf("Failed to initialize object storage: %v", err)
	}

	hub := socket.NewHub(db)
	go hub.Run()

	handler := router.Setup(db, hub, snapshots, storage)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logger.Sugar.Infof("CoveStack backend listening on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
