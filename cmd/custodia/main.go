package main

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/custodia/adapters/events"
	"github.com/custodia-labs/custodia/adapters/ledger"
	"github.com/custodia-labs/custodia/adapters/noncestore"
	"github.com/custodia-labs/custodia/adapters/store"
	"github.com/custodia-labs/custodia/adapters/tokenizer"
	"github.com/custodia-labs/custodia/config"
	"github.com/custodia-labs/custodia/internal/logging"
	"github.com/custodia-labs/custodia/ports"
	"github.com/custodia-labs/custodia/service"
	"github.com/custodia-labs/custodia/transport/http"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logging.New(cfg.LogLevel, cfg.LogJSON)

	db, err := store.Open(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// Redis, when configured, backs both the nonce store and the event
	// stream. Without it nonces live in memory and events on a local
	// channel, which is fine for a single process.
	var nonces ports.NonceStore
	var publisher message.Publisher
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to parse redis url")
		}
		redisClient := redis.NewClient(opts)
		nonces = noncestore.NewRedisStore(redisClient)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create redis publisher")
		}
	} else {
		nonces = noncestore.NewMemoryStore()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	}
	eventPub := events.NewWatermillPublisher(publisher)

	jwtTokenizer, err := tokenizer.NewJWTTokenizer([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create tokenizer")
	}

	gateway := ledger.NewRPCClient(cfg.RPCURL, logging.WithComponent(log, "ledger"))

	users := store.NewUsers(db)
	wallets := store.NewWallets(db)
	transfers := store.NewTransfers(db)
	jobs := store.NewJobs(db)

	authService := service.NewAuthService(nonces, jwtTokenizer, users, logging.WithComponent(log, "auth"))
	walletService := service.NewWalletService(wallets, jobs, gateway, cfg.ExportDir, logging.WithComponent(log, "wallet"))
	planner := service.NewPlanner(wallets, gateway, logging.WithComponent(log, "planner"))
	transferService := service.NewTransferService(planner, transfers, gateway, eventPub, logging.WithComponent(log, "transfer"))

	router := http.SetupRouter(authService, walletService, transferService)

	log.Info().Str("addr", cfg.Addr).Msg("starting server")
	if err := router.Run(cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
