package smartcache

import "github.com/goforj/smartcache/cachecore"

// Driver identifies cache backend.
type Driver = cachecore.Driver

// Store is the backend contract shared by all drivers.
type Store = cachecore.Store

const (
	DriverNull      = cachecore.DriverNull
	DriverFile      = cachecore.DriverFile
	DriverMemory    = cachecore.DriverMemory
	DriverMemcached = cachecore.DriverMemcached
	DriverDynamo    = cachecore.DriverDynamo
	DriverRedis     = cachecore.DriverRedis
	DriverNATS      = cachecore.DriverNATS
	DriverSQLite    = cachecore.DriverSQLite
	DriverPostgres  = cachecore.DriverPostgres
	DriverMySQL     = cachecore.DriverMySQL
)
