package database

import (
	"context"
	"fmt"
	"time"

	"turnover/config"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/valkey-io/valkey-go"
)

// Valkey Database Index Organization
// Each database index provides logical separation for different cache categories
const (
	// GENERAL_CACHE_INDEX (DB 0) - Computed views such as the cleaning alert board
	GENERAL_CACHE_INDEX = iota

	// DRAFT_CACHE_INDEX (DB 1) - In-progress cleaning drafts keyed per
	// schedule and team member
	DRAFT_CACHE_INDEX

	// EVENTS_CACHE_INDEX (DB 2) - Pub/sub for schedule change notifications
	EVENTS_CACHE_INDEX
)

func newCacheClient(address string, index int) (valkey.Client, error) {
	return valkey.NewClient(
		valkey.ClientOption{
			InitAddress: []string{address},
			SelectDB:    index,
		},
	)
}

func (s *DB) initializeCacheDB(config config.Config) error {
	log := s.log.Function("initializeCacheDB")
	log.Info("initializing cache database")

	address := config.DatabaseCacheAddress
	port := config.DatabaseCachePort
	if address == "" || port == 0 {
		return log.Errorf("failed to initialize cache database", "address or port is empty")
	}
	initAddress := fmt.Sprintf("%s:%d", address, port)

	var cacheDB Cache

	var err error
	cacheDB.General, err = newCacheClient(initAddress, GENERAL_CACHE_INDEX)
	if err != nil {
		return log.Err("failed to create general valkey client", err)
	}

	cacheDB.Drafts, err = newCacheClient(initAddress, DRAFT_CACHE_INDEX)
	if err != nil {
		return log.Err("failed to create drafts valkey client", err)
	}

	cacheDB.Events, err = newCacheClient(initAddress, EVENTS_CACHE_INDEX)
	if err != nil {
		return log.Err("failed to create events valkey client", err)
	}

	s.Cache = cacheDB

	if config.DatabaseCacheReset != -1 {
		go clearCacheDB(config.DatabaseCacheReset, cacheDB)
	}

	return nil
}

func clearCacheDB(index int, cacheDB Cache) {
	log := logger.New("database").File("cache.database").Function("clearCacheDB")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var client CacheClient
	var dbName string

	switch index {
	case GENERAL_CACHE_INDEX:
		client = cacheDB.General
		dbName = "General"
	case DRAFT_CACHE_INDEX:
		client = cacheDB.Drafts
		dbName = "Drafts"
	case EVENTS_CACHE_INDEX:
		client = cacheDB.Events
		dbName = "Events"
	default:
		log.Warn("Invalid cache database index", "index", index)
		return
	}

	if err := client.Do(ctx, client.B().Flushdb().Build()).Error(); err != nil {
		log.Er("Failed to clear cache database", err, "index", index, "dbName", dbName)
		return
	}

	log.Info("Successfully cleared cache database", "index", index, "dbName", dbName)
}
