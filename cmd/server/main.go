package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/clinovia/hospital-api/internal/config"
	"github.com/clinovia/hospital-api/internal/database"
	"github.com/clinovia/hospital-api/internal/handler"
	"github.com/clinovia/hospital-api/internal/queue"
	"github.com/clinovia/hospital-api/internal/repository"
	"github.com/clinovia/hospital-api/internal/router"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	tenants := repository.NewTenantRepo(db)
	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	history := repository.NewHistoryRepo(db)
	resets := repository.NewResetTokenRepo(db)

	auth := handler.NewAuthHandler(cfg, tenants, users, roles, tokens, history, resets)
	role := handler.NewRoleHandler(roles, users)
	user := handler.NewUserHandler(users)
	tenant := handler.NewTenantHandler(tenants)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting disabled")
	}

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, cfg, rdb)
	router.RegisterRoles(e, role, cfg)
	router.RegisterUsers(e, user, cfg)
	router.RegisterTenants(e, tenant, cfg)

	// Background notification consumer; reconnects on broker failures.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
