package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DB holds the optional database connections. Postgres backs the delivery
// log, Mongo the document store when STORE_BACKEND=mongo.
type DB struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
}

// InitDB opens the connections the configuration asks for
func InitDB(cfg *Config) (*DB, error) {
	db := &DB{}

	if cfg.DeliveryLogDSN != "" {
		postgresDB, err := initPostgres(cfg.DeliveryLogDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := postgresDB.AutoMigrate(&models.DeliveryRecord{}); err != nil {
			return nil, fmt.Errorf("failed to migrate delivery log: %w", err)
		}
		db.Postgres = postgresDB
	}

	if cfg.StoreBackend == StoreMongo {
		mongoClient, err := initMongo(cfg.MongoURI)
		if err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		db.Mongo = mongoClient
	}

	return db, nil
}

// initPostgres opens the delivery log database with a small pool; writes
// are batched per push.
func initPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	if err = sqlDB.Ping(); err != nil {
		return nil, err
	}

	slog.Info("connected to delivery log database")
	return db, nil
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	slog.Info("connected to MongoDB document store")
	return client, nil
}

// CloseDB closes whichever connections were opened
func (db *DB) CloseDB() {
	if db.Postgres != nil {
		if sqlDB, err := db.Postgres.DB(); err != nil {
			slog.Error("get delivery log connection", "error", err)
		} else if err := sqlDB.Close(); err != nil {
			slog.Error("close delivery log connection", "error", err)
		}
	}

	if db.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Mongo.Disconnect(ctx); err != nil {
			slog.Error("close MongoDB connection", "error", err)
		}
	}
}
