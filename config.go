package smartcache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/smartcache/cachecore"
)

const (
	defaultCachePrefix           = "smartcache"
	defaultCacheTTL              = time.Hour
	defaultMemoryCleanupInterval = 10 * time.Minute
	defaultMemcachedAddress      = "127.0.0.1:11211"
	defaultRedisAddress          = "127.0.0.1:6379"
	defaultNATSBucket            = "smartcache"
	defaultDynamoTable           = "smartcache_entries"
	defaultDynamoRegion          = "us-east-1"
	defaultSQLTable              = "smartcache_entries"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "smartcache-file")
}

func defaultSQLitePath() string {
	return filepath.Join(os.TempDir(), "smartcache.sqlite")
}

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	cachecore.BaseConfig

	Driver Driver

	// MemoryCleanupInterval controls in-process cache eviction.
	MemoryCleanupInterval time.Duration

	// RedisClient is used by DriverRedis. When nil, RedisAddr is dialed.
	RedisClient RedisClient
	// RedisAddr is either host:port or a redis:// URL.
	RedisAddr string

	// MemcachedAddresses lists the servers keys are distributed across.
	MemcachedAddresses []string

	// FileDir controls where file driver stores cache entries.
	FileDir string

	// SQLDriverName is the database/sql driver ("pgx", "mysql", "sqlite").
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// NATSKeyValue is used by DriverNATS. When nil, NATSURL is dialed and
	// NATSBucket is created or bound.
	NATSKeyValue NATSKeyValue
	NATSURL      string
	NATSBucket   string

	// DynamoClient is used by DriverDynamo. When nil, a client is built
	// from DynamoRegion and DynamoEndpoint.
	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultCacheTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultCachePrefix
	}
	if c.Compression == "" {
		c.Compression = cachecore.CompressionNone
	}
	if c.RedisAddr == "" {
		c.RedisAddr = defaultRedisAddress
	}
	if len(c.MemcachedAddresses) == 0 {
		c.MemcachedAddresses = []string{defaultMemcachedAddress}
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.NATSBucket == "" {
		c.NATSBucket = defaultNATSBucket
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	return c
}
