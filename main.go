package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openmelee/netplay-server/api"
	api_i "github.com/openmelee/netplay-server/api/i"
	"github.com/openmelee/netplay-server/api/identity"
	userapi "github.com/openmelee/netplay-server/api/user"
	"github.com/openmelee/netplay-server/config"
	"github.com/openmelee/netplay-server/infrastruture/cache"
	"github.com/openmelee/netplay-server/infrastruture/repo"
	"github.com/openmelee/netplay-server/infrastruture/token"
	"github.com/openmelee/netplay-server/matchmaking"
	"github.com/openmelee/netplay-server/service"
	"github.com/openmelee/netplay-server/transport"
)

// Global variables for dependencies
var (
	cfg *config.Config
	log = logrus.New()

	mongoClient *mongo.Client
	redisClient *redis.Client
	userRepo    *repo.UserRepo
	userCache   *cache.UserCache
	jwtService  *token.JwtService
	authService *service.Auth
	userService *service.Users
	router      *api.Router
	mmHost      *transport.Host
	mmServer    *matchmaking.Server
)

func initConfig() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		log.Fatalf("Loading configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Parsing log level: %v", err)
	}
	log.SetLevel(level)
	gin.SetMode(cfg.GinMode)
}

func initMongo(ctx context.Context) {
	uri := fmt.Sprintf("mongodb://%s:%d", cfg.DBHost, cfg.DBPort)
	if cfg.DBUser != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort)
	}

	var err error
	mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Connecting to MongoDB: %v", err)
	}
	if err = mongoClient.Ping(ctx, nil); err != nil {
		log.Fatalf("MongoDB ping failed: %v", err)
	}
	log.Info("Connected to MongoDB")

	userRepo = repo.NewUserRepo(mongoClient, cfg.DBName, "users")
	log.Info("User repository initialized")
}

func initRedis(ctx context.Context) {
	redisClient = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis ping failed: %v", err)
	}
	log.Info("Connected to Redis")

	userCache = cache.NewUserCache(redisClient, nil)
	log.Info("User cache initialized")
}

func initServices() {
	var err error
	jwtService = token.NewJwtService(cfg.JWTSecret, cfg.JWTIssuer)

	authService, err = service.NewAuth(userRepo, userCache, jwtService)
	if err != nil {
		log.Fatalf("Creating auth service: %v", err)
	}

	userService, err = service.NewUsers(userRepo, userCache)
	if err != nil {
		log.Fatalf("Creating user service: %v", err)
	}
	log.Info("Services initialized")
}

func initRouter() {
	authController := identity.NewIdentityServer(authService)
	userController, err := userapi.NewUserController(userService)
	if err != nil {
		log.Fatalf("Creating user controller: %v", err)
	}

	router = api.NewRouter(api.Config{
		Addr:                    fmt.Sprintf("%s:%d", cfg.HostIP, cfg.RESTPort),
		BaseURL:                 "/",
		Controllers:             []api_i.Controller{authController, userController},
		AuthorizationMiddleware: identity.Authorize(jwtService),
	})
	log.Info("Router initialized")
}

func initMatchmaking() {
	var err error
	mmHost, err = transport.NewHost(transport.HostConfig{
		ListenAddr: &net.UDPAddr{IP: net.ParseIP(cfg.HostIP), Port: cfg.MatchmakingPort},
		MaxPeers:   cfg.MatchmakingMaxPeers,
	}, transport.WithLogger(log.WithField("component", "transport")))
	if err != nil {
		log.Fatalf("Creating transport host: %v", err)
	}

	mmServer = matchmaking.NewServer(mmHost,
		matchmaking.WithLogger(log.WithField("component", "matchmaking")))
	log.Infof("Matchmaking server listening on udp://%s:%d", cfg.HostIP, cfg.MatchmakingPort)
}

func main() {
	initConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connectCancel()

	initMongo(connectCtx)
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	initRedis(connectCtx)
	defer func() {
		_ = redisClient.Close()
	}()

	initServices()
	initRouter()
	initMatchmaking()

	go mmHost.Serve()
	defer mmHost.Stop()
	go mmServer.Run(ctx)

	if err := router.Run(); err != nil {
		log.Fatalf("Starting REST server: %v", err)
	}
}
