package main

import (
	"log"
	"net/http"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"cleanops/internal/billing"
	"cleanops/internal/config"
	"cleanops/internal/geocode"
	"cleanops/internal/httpserver"
	"cleanops/internal/logger"
	"cleanops/internal/mail"
	"cleanops/internal/models"
)

func main() {
	cfg := config.Load()
	lg := logger.New()
	defer lg.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Company{}, &models.User{}, &models.Employee{}, &models.Customer{},
		&models.Job{}, &models.Quote{}, &models.Invoice{}, &models.Shift{},
		&models.Message{}, &models.Attachment{}, &models.Session{}, &models.AuditLog{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	router := httpserver.NewRouter(httpserver.Deps{
		DB:      db,
		Log:     lg,
		Config:  cfg,
		Mailer:  mail.NewClient(cfg, lg),
		Billing: billing.NewClient(cfg),
		Geo:     geocode.NewClient(cfg),
	})

	lg.Infow("listening", "port", cfg.Server.Port, "env", cfg.Server.Env)
	if err := http.ListenAndServe(":"+cfg.Server.Port, router); err != nil {
		log.Fatal(err)
	}
}
