package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/database"
	queueAdapter "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/queue/adapter"
	pushAdapter "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/push/adapter"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/realtime"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/logutil"
	chatsync "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync"
	cacheAdapter "github.com/bdika645-rgb/lovewave-finder-sub000/internal/infrastructure/cache/adapter"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/guard"
	repoAdapter "github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/persistence/repository/adapter"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/port"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/presentation/task"
	v1 "github.com/bdika645-rgb/lovewave-finder-sub000/cmd/api/router/v1"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync gateway and its fan-out worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	logger, err := logutil.New(logutil.Config{
		Level:     viper.GetString("logging.level"),
		Format:    viper.GetString("logging.format"),
		AddSource: viper.GetBool("logging.add_source"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, viper.GetString("database.url"))
	if err != nil {
		return err
	}
	defer pool.Close()

	redisOpt, err := redis.ParseURL(viper.GetString("redis.url"))
	if err != nil {
		return err
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()
	if err := redisClient.Ping(connectCtx).Err(); err != nil {
		return err
	}

	repo := repoAdapter.NewPgSyncRepository(pool)
	channel := pushAdapter.NewRedisChannel(redisClient, logger)
	cache := cacheAdapter.NewRedisCacheFromClient(redisClient)

	queueClient, err := queueAdapter.NewAsynqClient(viper.GetString("redis.url"))
	if err != nil {
		return err
	}
	defer queueClient.Close()

	worker, err := queueAdapter.NewAsynqServer(viper.GetString("redis.url"), viper.GetInt("worker.concurrency"), logger)
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	defer hub.Close()
	task.RegisterPublishChangeTask(worker, channel, hub, logger)

	engine := chatsync.New(chatsync.Options{
		Session:  domain.NewSession(viper.GetString("session.subject")),
		Data:     repo,
		Profiles: repo,
		Creator:  repo,
		Identity: repo,
		Guard: guard.New(guard.Config{
			ReadOnly:       viper.GetBool("guard.read_only"),
			BlockedActions: viper.GetStringSlice("guard.blocked_actions"),
		}, logger),
		Channel:       channel,
		Cache:         cache,
		Clock:         port.RealClock(),
		Debounce:      time.Duration(viper.GetInt("sync.debounce_ms")) * time.Millisecond,
		MessageWindow: viper.GetInt("sync.window"),
		Logger:        logger,
	})
	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Close()

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	v1.RegisterRoutes(r, engine, queueClient, hub, logger)

	srv := &http.Server{Addr: viper.GetString("server.addr"), Handler: r}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("worker: starting", "concurrency", viper.GetInt("worker.concurrency"))
		errCh <- worker.Run(ctx)
	}()
	go func() {
		logger.Info("http: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http: shutdown", "err", err)
	}
	return nil
}
