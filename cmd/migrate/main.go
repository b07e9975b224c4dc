package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/cassandra"

	"shopfront_back_end/internal/config"
	"shopfront_back_end/internal/database"
	"shopfront_back_end/internal/models"
	"shopfront_back_end/internal/repository"
	"shopfront_back_end/internal/repository/migrations"
)

const usage = "usage: migrate <up|down|version> [users|products|orders|all] | migrate promote <email>"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	replication := flag.Int("replication", config.EnvIntDefault("SCYLLA_REPLICATION_FACTOR", 1), "replication factor for new keyspaces")
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		logger.Error(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	if len(cfg.ScyllaHosts) == 0 {
		logger.Error("SCYLLA_HOSTS environment variable is required")
		os.Exit(1)
	}

	if args[0] == "promote" {
		if len(args) < 2 {
			logger.Error(usage)
			os.Exit(1)
		}
		if err := promote(cfg, logger, args[1]); err != nil {
			logger.Error("promote failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	set := "all"
	if len(args) > 1 {
		set = args[1]
	}
	targets, err := keyspaces(cfg, set)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	for _, t := range targets {
		l := logger.With(slog.String("set", t.set), slog.String("keyspace", t.ks.Keyspace))
		if err := ensureKeyspace(cfg, t.ks.Keyspace, *replication); err != nil {
			l.Error("failed to create keyspace", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := runCommand(l, args[0], t, cfg.ScyllaHosts); err != nil {
			l.Error("migration failed", slog.String("command", args[0]), slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}

type target struct {
	set string
	ks  config.KeyspaceConfig
}

func keyspaces(cfg config.Config, set string) ([]target, error) {
	all := map[string]config.KeyspaceConfig{
		"users":    cfg.UsersKeyspace,
		"products": cfg.ProductsKeyspace,
		"orders":   cfg.OrdersKeyspace,
	}
	if set == "all" {
		out := make([]target, 0, len(migrations.Keyspaces))
		for _, name := range migrations.Keyspaces {
			out = append(out, target{set: name, ks: all[name]})
		}
		return out, nil
	}
	ks, ok := all[set]
	if !ok {
		return nil, fmt.Errorf("unknown migration set %q", set)
	}
	return []target{{set: set, ks: ks}}, nil
}

// ensureKeyspace creates the keyspace as SCYLLA_ADMIN_USER, since keyspace roles cannot create keyspaces.
func ensureKeyspace(cfg config.Config, keyspace string, replication int) error {
	cluster := gocql.NewCluster(cfg.ScyllaHosts...)
	cluster.Timeout = 10 * time.Second
	if user := config.EnvDefault("SCYLLA_ADMIN_USER", ""); user != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: user, Password: os.Getenv("SCYLLA_ADMIN_PASSWORD")}
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return err
	}
	defer session.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}`,
		keyspace, replication)
	return session.Query(stmt).Exec()
}

// databaseURL builds the golang-migrate cassandra URL for one keyspace.
func databaseURL(hosts []string, ks config.KeyspaceConfig) string {
	withPorts := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if _, _, err := net.SplitHostPort(h); err != nil {
			h = net.JoinHostPort(h, "9042")
		}
		withPorts = append(withPorts, h)
	}
	q := url.Values{}
	q.Set("x-multi-statement", "true")
	q.Set("consistency", "ALL")
	if ks.Role != "" {
		q.Set("username", ks.Role)
		q.Set("password", ks.Password)
	}
	return fmt.Sprintf("cassandra://%s/%s?%s", strings.Join(withPorts, ","), ks.Keyspace, q.Encode())
}

func runCommand(logger *slog.Logger, command string, t target, hosts []string) error {
	src, err := migrations.Source(t.set)
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL(hosts, t.ks))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no pending migrations")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("migrations applied successfully")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to rollback")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("migration rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("current migration version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))

	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}

func promote(cfg config.Config, logger *slog.Logger, email string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clusterCfg, err := database.NewCluster(database.KeyspaceConfigs(cfg)[cfg.UsersKeyspace.Keyspace])
	if err != nil {
		return err
	}
	session, err := clusterCfg.CreateSession()
	if err != nil {
		return err
	}
	defer session.Close()

	users := repository.NewUserStore(session)
	user, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if err := users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info("user promoted to admin", slog.String("user_id", user.ID), slog.String("email", user.Email))
	return nil
}
