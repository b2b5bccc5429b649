package cachecore

import "strings"

// Driver identifies cache backend.
type Driver string

const (
	DriverNull      Driver = "null"
	DriverFile      Driver = "file"
	DriverMemory    Driver = "memory"
	DriverMemcached Driver = "memcached"
	DriverDynamo    Driver = "dynamodb"
	DriverRedis     Driver = "redis"
	DriverNATS      Driver = "nats"
	DriverSQLite    Driver = "sqlite"
	DriverPostgres  Driver = "postgres"
	DriverMySQL     Driver = "mysql"
)

// ParseDriver normalizes a backend name. Names are matched case-insensitively.
func ParseDriver(name string) Driver {
	return Driver(strings.ToLower(strings.TrimSpace(name)))
}
