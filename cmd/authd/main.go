package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"talkheal/cfg"
	"talkheal/internal/auth"
	"talkheal/pkg/cache"
	"talkheal/pkg/db"
	"talkheal/pkg/idgen"
	"talkheal/pkg/logger"
	"talkheal/pkg/oauth2"
	"talkheal/pkg/session"

	_ "talkheal/cmd/authd/docs" // swagger docs

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           TalkHeal Auth API
// @version         1.0
// @description     Authentication service: OAuth2, credential and guest login backed by server-side sessions.
// @BasePath        /
// @schemes         http
func main() {
	// ============
	// config
	// ============
	config, errCfg := cfg.Load()
	if errCfg != nil {
		log.Fatal(errCfg)
	}

	// ============
	// logger
	// ============
	zlogger := logger.NewZeroLog(config.AppEnv)

	// ============
	// Postgres
	// ============
	pg := config.PostgresConfig
	pgDSN := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		pg.User, pg.Password, pg.Host, pg.Port, pg.DBName, pg.SSLMode,
	)
	sqlClient, err := db.NewSQLClient("pgx", pgDSN)
	if err != nil {
		log.Fatal(err)
	}

	// ============
	// Session store
	// ============
	sessionCfg := session.Config{
		TTL:         time.Duration(config.Session.TTLHours) * time.Hour,
		MaxLifetime: time.Duration(config.Session.MaxLifetimeHours) * time.Hour,
	}
	var sessions session.Store
	switch config.Session.Store {
	case "redis":
		redisAddr := config.RedisConfig.Host + ":" + config.RedisConfig.Port
		redis := cache.NewRedisCache(redisAddr, config.RedisConfig.Password)
		sessions = session.NewRedisStore(redis, sessionCfg)
	default:
		sessions = session.NewMemoryStore(sessionCfg)
	}
	defer sessions.Close()

	// ============
	// OAuth2
	// ============
	registry, err := oauth2.NewRegistry(context.Background(), &config.OAuth2, zlogger)
	if err != nil {
		log.Fatal(err)
	}
	states := oauth2.NewStateManager(time.Duration(config.Session.StateTTLMinutes) * time.Minute)
	defer states.Close()
	flow := oauth2.NewFlow(registry, states, zlogger)

	// ============
	// Internal Service
	// ============
	generator, err := idgen.NewSnowflakeGenerator(1)
	if err != nil {
		log.Fatal(err)
	}
	users := auth.NewCredentialStore(sqlClient, generator)
	authenticator := auth.NewAuthenticator(users)
	resetTokens := auth.NewResetTokenManager(15 * time.Minute)
	defer resetTokens.Close()
	mailer := auth.NewSMTPMailer(config.SMTP)
	authSvc := auth.NewService(flow, sessions, authenticator, users, resetTokens, mailer, registry.Names(), zlogger)
	authHandler := auth.NewHandler(authSvc, sessionCfg.TTL)

	// ============
	// HTTP
	// ============
	r := gin.Default()

	authHandler.RegisterRoutes(r)
	initSwagger(r)

	addr := fmt.Sprintf(":%s", config.AppPort)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func initSwagger(r *gin.Engine) {
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
