package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	"github.com/victornm/bhasha/internal/api"
	"github.com/victornm/bhasha/internal/broker"
	"github.com/victornm/bhasha/internal/catalog"
	"github.com/victornm/bhasha/internal/event"
	"github.com/victornm/bhasha/internal/leaderboard"
	"github.com/victornm/bhasha/internal/media"
	"github.com/victornm/bhasha/internal/session"
	"github.com/victornm/bhasha/internal/store"
	"github.com/victornm/bhasha/internal/submission"
	"github.com/victornm/bhasha/internal/telemetry"
)

type Server struct {
	c Config

	eb      *event.Bus
	catalog *catalog.Catalog
	store   *store.Store

	infra struct {
		db       *gorm.DB
		postgres *pgxpool.Pool
		redis    redis.UniversalClient
		media    media.Store
		rabbitmq *broker.RabbitMQ
	}

	service struct {
		session     *session.Service
		submission  *submission.Service
		leaderboard *leaderboard.Service
		broker      *broker.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	policy := session.WritePolicy(c.Scoring.WritePolicy)
	if !policy.Valid() {
		return nil, fmt.Errorf("server: unknown write policy %q", c.Scoring.WritePolicy)
	}

	s.eb = event.NewBus()

	var err error
	if s.catalog, err = catalog.Load(c.Catalog.Path); err != nil {
		return nil, fmt.Errorf("server: load catalog: %w", err)
	}

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService(policy)
	s.initAPI()

	slog.Info("server: initialized",
		"prompts", s.catalog.Len(),
		"store", c.Store.Driver,
		"media", c.Media.Driver,
		"write_policy", policy,
	)

	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initMedia(); err != nil {
		return fmt.Errorf("media: %w", err)
	}

	if err := s.initBroker(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}

	return nil
}

func (s *Server) initStore() (err error) {
	switch s.c.Store.Driver {
	case StoreDriverPostgres:
		if s.infra.postgres, err = s.connectPostgres(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		s.infra.db, err = store.OpenPostgres(s.infra.postgres)

	case StoreDriverSQLite, "":
		s.infra.db, err = store.OpenSQLite(s.c.Store.SQLite.Path)

	default:
		return fmt.Errorf("unknown driver %q", s.c.Store.Driver)
	}
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.store = store.New(store.Config{DB: s.infra.db})
	if err := s.store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	return nil
}

func (s *Server) connectPostgres() (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pc := s.c.Store.Postgres

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
	if err != nil {
		return nil, err
	}
	if pc.MaxConns > 0 {
		cc.MaxConns = pc.MaxConns
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initMedia() (err error) {
	switch s.c.Media.Driver {
	case MediaDriverS3:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c := s.c.Media.S3
		s.infra.media, err = media.NewS3Store(ctx, media.S3Config{
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Bucket:    c.Bucket,
			UseSSL:    c.UseSSL,
		})

	case MediaDriverFS, "":
		s.infra.media, err = media.NewFSStore(s.c.Media.Dir)

	default:
		err = fmt.Errorf("unknown driver %q", s.c.Media.Driver)
	}

	return err
}

func (s *Server) initBroker() error {
	if s.c.Broker.URL == "" {
		slog.Info("server: broker disabled, accepted submissions are not exported")
		return nil
	}

	r, err := broker.DialRabbitMQ(s.c.Broker.URL)
	if err != nil {
		return err
	}

	s.infra.rabbitmq = r
	return nil
}

func (s *Server) initService(policy session.WritePolicy) {
	s.service.session = session.NewService(session.Config{
		Store:  s.store,
		Redis:  s.infra.redis,
		Prefix: s.c.Redis.Prefix,
		TTL:    s.c.Redis.SessionTTL,
		Policy: policy,
	})

	s.service.submission = submission.NewService(submission.Config{
		EventBus: s.eb,
		Store:    s.store,
		Catalog:  s.catalog,
		Policy:   policy,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Store:    s.store,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
	})

	if s.infra.rabbitmq != nil {
		s.service.broker = broker.NewService(broker.Config{
			EventBus:  s.eb,
			Publisher: s.infra.rabbitmq,
			Queue:     s.c.Broker.Queue,
		})
	}
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())
	e.Use(cors.New(s.corsConfig()))

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Catalog:      s.catalog,
		Session:      s.service.session,
		Submission:   s.service.submission,
		Leaderboard:  s.service.leaderboard,
		Stats:        s.store,
		Media:        s.infra.media,
		Redis:        s.infra.redis,
		PubsubPrefix: s.c.Redis.Prefix,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(), telemetry.GRPCStreamInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) corsConfig() cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	origins := s.c.CORS.AllowOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}

	return c
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.rabbitmq != nil {
		if err := s.infra.rabbitmq.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close rabbitmq failed", "error", err)
		}
	}

	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	if sqlDB, err := s.infra.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
