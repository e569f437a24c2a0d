package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chepyr/go-task-board/internal/activity"
	"github.com/chepyr/go-task-board/internal/board"
	"github.com/chepyr/go-task-board/internal/config"
	"github.com/chepyr/go-task-board/internal/db"
	"github.com/chepyr/go-task-board/internal/handlers"
	"github.com/chepyr/go-task-board/internal/logging"
	"github.com/chepyr/go-task-board/internal/mongostore"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const serviceName = "tasks-service"

type stores struct {
	tasks      db.TaskRepositoryInterface
	users      db.UserRepositoryInterface
	activities db.ActivityRepositoryInterface
	close      func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	logger, err := logging.New(serviceName, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		logrus.WithError(err).Fatal("invalid logging configuration")
	}

	st, err := openStores(cfg, logger)
	if err != nil {
		logger.WithError(err).WithField("event_id", "DB_CONNECT_FAILED").Fatal("failed to open store")
	}
	defer st.close()

	hub := handlers.NewWSHub(cfg.AllowedOrigins, logger)
	recorder := activity.NewRecorder(st.activities, activity.Options{
		QueueSize: cfg.ActivityQueue,
		Notifier:  hub,
		Logger:    logger,
	})
	limiter := handlers.NewRateLimiter(5, time.Second)
	defer limiter.Stop()

	h := &handlers.Handler{
		Board: board.NewService(board.Deps{
			Tasks:    st.tasks,
			Users:    st.users,
			Activity: recorder,
			Notifier: hub,
			Logger:   logger,
		}),
		UserRepo:     st.users,
		ActivityRepo: st.activities,
		RateLimiter:  limiter,
		WSHub:        hub,
		JWTSecret:    []byte(cfg.JWTSecret),
		Timeout:      cfg.RequestTimeout,
		Logger:       logger,
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handlers.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}
	startServer(server, logger)

	hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := recorder.Close(ctx); err != nil {
		logger.WithError(err).Warn("activity queue not drained")
	}
}

func openStores(cfg *config.Config, logger logrus.FieldLogger) (*stores, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.StoreDriver == config.DriverMongo {
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDB)
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.WithFields(logrus.Fields{"event_id": "DB_CONNECTED", "driver": "mongo", "database": cfg.MongoDB}).
			Info("connected to MongoDB")
		return &stores{
			tasks:      mongostore.NewTaskStore(database),
			users:      mongostore.NewUserStore(database),
			activities: mongostore.NewActivityStore(database),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					logger.WithError(err).Error("error closing MongoDB connection")
				}
			},
		}, nil
	}

	driver, dsn := cfg.SQLDSN()
	dbConn, err := db.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if err := db.Migrate(ctx, dbConn); err != nil {
		dbConn.Close()
		return nil, err
	}
	logger.WithFields(logrus.Fields{"event_id": "DB_CONNECTED", "driver": driver}).Info("connected to database")
	return &stores{
		tasks:      db.NewTaskRepository(dbConn),
		users:      db.NewUserRepository(dbConn),
		activities: db.NewActivityRepository(dbConn),
		close: func() {
			if err := dbConn.Close(); err != nil {
				logger.WithError(err).Error("error closing database connection")
			}
		},
	}, nil
}

func startServer(server *http.Server, logger logrus.FieldLogger) {
	logger.WithField("addr", server.Addr).Info("starting tasks server")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info("shutting down server")
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
	logger.Info("server stopped")
}
