package main

import (
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"buildtrack/internal/auth"
	"buildtrack/internal/httpserver"
	"buildtrack/internal/logger"
	"buildtrack/internal/models"
	"buildtrack/internal/rbac"
	"buildtrack/internal/service"
	"buildtrack/internal/storage"
)

func main() {
	_ = godotenv.Load()
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
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedRolesAndAdmin(db, lg)

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	store, err := storage.New(uploadDir)
	if err != nil {
		lg.Fatalw("storage init failed", "error", err)
	}
	if cleaned, err := service.NewFiles(db, store).Sweep(); err != nil {
		lg.Errorw("tombstone sweep failed", "error", err)
	} else if cleaned > 0 {
		lg.Infow("swept tombstoned files", "count", cleaned)
	}

	router := httpserver.NewRouter(db, store, lg)
	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}
	lg.Infow("listening", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatal(err)
	}
}

func seedRolesAndAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	for _, role := range rbac.All {
		db.Where(models.RoleRow{Name: string(role)}).FirstOrCreate(&models.RoleRow{Name: string(role)})
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count > 0 {
		return
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		lg.Errorw("admin seed hash failed", "error", err)
		return
	}
	u := models.User{
		ID:           uuid.NewString(),
		Email:        "admin@buildtrack.local",
		PasswordHash: hash,
		FullName:     "Administrator",
		Role:         rbac.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		lg.Errorw("admin seed failed", "error", err)
		return
	}
	lg.Infow("seeded default admin", "email", u.Email)
}
