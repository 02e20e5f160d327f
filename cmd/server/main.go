// Command server runs the command admission gateway.
//
// Stores are selected from the environment: a DATABASE_URL picks the
// Postgres-backed stores, otherwise everything runs in memory. Redis and
// Kafka are optional; when absent, notifications stay in-process and audit
// events are store-only.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"cmdgate/internal/admin"
	admissionhandler "cmdgate/internal/admission/handler"
	"cmdgate/internal/admission/matcher"
	"cmdgate/internal/admission/metrics"
	"cmdgate/internal/admission/ports"
	"cmdgate/internal/admission/seed"
	"cmdgate/internal/admission/service"
	actorstore "cmdgate/internal/admission/store/actor"
	commandstore "cmdgate/internal/admission/store/command"
	rulestore "cmdgate/internal/admission/store/rule"
	"cmdgate/internal/audit"
	auditpublisher "cmdgate/internal/audit/publisher"
	auditmemory "cmdgate/internal/audit/store/memory"
	auditpostgres "cmdgate/internal/audit/store/postgres"
	"cmdgate/internal/executor"
	"cmdgate/internal/notify"
	"cmdgate/internal/platform/config"
	"cmdgate/internal/platform/httpserver"
	"cmdgate/internal/platform/logger"
	platformredis "cmdgate/internal/platform/redis"
	httptransport "cmdgate/internal/transport/http"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rules      ports.RuleStore
		actors     ports.ActorStore
		commands   ports.CommandStore
		auditStore audit.Store
		health     []httptransport.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := bootstrapSchema(ctx, db); err != nil {
			return err
		}

		rules = rulestore.NewPostgres(db)
		actors = actorstore.NewPostgres(db)
		commands = commandstore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
		health = append(health, httptransport.Check("postgres", db.PingContext))
		log.Info("using postgres stores")
	} else {
		rules = rulestore.NewInMemoryStore()
		actors = actorstore.NewInMemoryStore()
		commands = commandstore.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	var notifier ports.Notifier
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		notifier = notify.NewRedisPublisher(redisClient.Client)
		health = append(health, httptransport.Check("redis", redisClient.Health))
		log.Info("notifications via redis pub/sub")
	} else {
		notifier = notify.NewHub()
	}

	publisherOpts := []auditpublisher.Option{auditpublisher.WithLogger(log)}
	if cfg.KafkaBrokers != "" {
		kafkaClient, err := kgo.NewClient(
			kgo.SeedBrokers(strings.Split(cfg.KafkaBrokers, ",")...),
			kgo.DefaultProduceTopic(cfg.AuditTopic),
		)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaClient.Close()
		publisherOpts = append(publisherOpts, auditpublisher.WithKafka(kafkaClient, cfg.AuditTopic))
		log.Info("audit events mirrored to kafka", "topic", cfg.AuditTopic)
	}
	publisher := auditpublisher.NewPublisher(auditStore, publisherOpts...)

	m := metrics.New()
	match := matcher.New(
		matcher.WithBudget(cfg.MatchBudget),
		matcher.WithLogger(log),
		matcher.WithTimeoutObserver(m.MatcherRuleTimeouts.Inc),
	)

	svc, err := service.New(rules, actors, commands, match, executor.NewSimulated(),
		service.WithLogger(log),
		service.WithNotifier(notifier),
		service.WithAuditPublisher(publisher),
		service.WithMetrics(m),
		service.WithCommandCost(cfg.CommandCost),
	)
	if err != nil {
		return fmt.Errorf("build admission service: %w", err)
	}

	if err := seed.Run(ctx, rules, actors, log, seed.Options{
		AdminKey:       cfg.SeedAdminKey,
		DefaultCredits: cfg.DefaultCredits,
	}); err != nil {
		return fmt.Errorf("seed defaults: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Admission: admissionhandler.New(svc, log),
		Admin: admin.New(actors, rules, svc, publisher, publisher, log,
			admin.WithDefaultCredits(cfg.DefaultCredits)),
		Resolver: actors,
		Logger:   log,
		Health:   health,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting cmdgate", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// bootstrapSchema applies each store's DDL. Statements are idempotent
// (CREATE TABLE IF NOT EXISTS) so this runs on every start.
func bootstrapSchema(ctx context.Context, db *sql.DB) error {
	for _, schema := range []string{
		actorstore.Schema,
		rulestore.Schema,
		commandstore.Schema,
		auditpostgres.Schema,
	} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
