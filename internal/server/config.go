package server

import (
	"time"

	"github.com/victornm/bhasha/internal/broker"
	"github.com/victornm/bhasha/internal/session"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"

	MediaDriverFS = "fs"
	MediaDriverS3 = "s3"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Store struct {
		Driver string

		SQLite struct {
			Path string
		}

		Postgres struct {
			Addr     string
			User     string
			Pass     string
			Name     string
			MaxConns int32
		}
	}

	Redis struct {
		Addrs      []string
		Pass       string
		Prefix     string
		SessionTTL time.Duration
	}

	Media struct {
		Driver string
		Dir    string

		S3 struct {
			Endpoint  string
			AccessKey string
			SecretKey string
			Bucket    string
			UseSSL    bool
		}
	}

	Broker struct {
		URL   string
		Queue string
	}

	Scoring struct {
		WritePolicy string
	}

	Catalog struct {
		Path string
	}

	CORS struct {
		AllowOrigins []string
	}
}

// DefaultConfig runs everything locally except redis.
func DefaultConfig() Config {
	var c Config

	c.HTTP.Port = 8080
	c.GRPC.Port = 8081

	c.Store.Driver = StoreDriverSQLite
	c.Store.SQLite.Path = "bhasha.db"
	c.Store.Postgres.MaxConns = 10

	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "bhasha"
	c.Redis.SessionTTL = 30 * 24 * time.Hour

	c.Media.Driver = MediaDriverFS
	c.Media.Dir = "uploads"
	c.Media.S3.Bucket = "bhasha-media"

	c.Broker.Queue = broker.DefaultQueue

	c.Scoring.WritePolicy = string(session.FailOpen)

	c.CORS.AllowOrigins = []string{"*"}

	return c
}
