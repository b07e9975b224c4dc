package database

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"

	"shopfront_back_end/internal/config"
)

type ScyllaKeyspaceConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	SSLEnabled  bool
	CACertPath  string
	Timeout     time.Duration
	NumConns    int
	Consistency gocql.Consistency
}

// ScyllaManager keeps one session per keyspace, each opened with the keyspace's own role.
type ScyllaManager struct {
	sessions map[string]*gocql.Session
	configs  map[string]ScyllaKeyspaceConfig
	mu       sync.Mutex
	log      *slog.Logger
}

// NewScyllaManager opens a session for every configured keyspace.
func NewScyllaManager(cfg config.Config, log *slog.Logger) (*ScyllaManager, error) {
	sm := &ScyllaManager{
		sessions: make(map[string]*gocql.Session),
		configs:  KeyspaceConfigs(cfg),
		log:      log,
	}
	for keyspace := range sm.configs {
		if _, err := sm.Session(keyspace); err != nil {
			sm.Close()
			return nil, fmt.Errorf("init keyspace %s: %w", keyspace, err)
		}
	}
	return sm, nil
}

func KeyspaceConfigs(cfg config.Config) map[string]ScyllaKeyspaceConfig {
	configs := make(map[string]ScyllaKeyspaceConfig)
	for _, ks := range []config.KeyspaceConfig{cfg.UsersKeyspace, cfg.ProductsKeyspace, cfg.OrdersKeyspace} {
		if ks.Keyspace == "" {
			continue
		}
		configs[ks.Keyspace] = ScyllaKeyspaceConfig{
			Hosts:       cfg.ScyllaHosts,
			Keyspace:    ks.Keyspace,
			Username:    ks.Role,
			Password:    ks.Password,
			SSLEnabled:  cfg.ScyllaSSLEnabled,
			CACertPath:  cfg.ScyllaCACertPath,
			Timeout:     5 * time.Second,
			NumConns:    20,
			Consistency: gocql.Quorum,
		}
	}
	return configs
}

func NewCluster(ksCfg ScyllaKeyspaceConfig) (*gocql.ClusterConfig, error) {
	cluster := gocql.NewCluster(ksCfg.Hosts...)
	cluster.Keyspace = ksCfg.Keyspace
	cluster.Consistency = ksCfg.Consistency
	cluster.Timeout = ksCfg.Timeout
	cluster.NumConns = ksCfg.NumConns
	cluster.MaxWaitSchemaAgreement = 30 * time.Second
	cluster.ReconnectInterval = time.Second
	if ksCfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: ksCfg.Username,
			Password: ksCfg.Password,
		}
	}

	if ksCfg.SSLEnabled && ksCfg.CACertPath != "" {
		caCert, err := os.ReadFile(ksCfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("parse CA certificate %s", ksCfg.CACertPath)
		}
		cluster.SslOpts = &gocql.SslOptions{Config: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}}
	}

	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	return cluster, nil
}

// Session returns the live session for keyspace, reopening it when the old one stopped answering.
func (sm *ScyllaManager) Session(keyspace string) (*gocql.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ksCfg, ok := sm.configs[keyspace]
	if !ok {
		return nil, fmt.Errorf("keyspace %q not configured", keyspace)
	}

	if session, ok := sm.sessions[keyspace]; ok {
		if err := session.Query("SELECT now() FROM system.local").Exec(); err == nil {
			return session, nil
		}
		session.Close()
		delete(sm.sessions, keyspace)
	}

	cluster, err := NewCluster(ksCfg)
	if err != nil {
		return nil, fmt.Errorf("cluster config for %s: %w", keyspace, err)
	}
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", keyspace, err)
	}

	sm.sessions[keyspace] = session
	sm.log.Info("scylla session opened", "keyspace", keyspace, "role", ksCfg.Username)
	return session, nil
}

func (sm *ScyllaManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for keyspace, session := range sm.sessions {
		session.Close()
		sm.log.Info("scylla session closed", "keyspace", keyspace)
	}
	sm.sessions = make(map[string]*gocql.Session)
}

func ConnectRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisHost,
		Password:     cfg.RedisPassword,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisHost, err)
	}
	return client, nil
}

func ConnectElastic(cfg config.Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.ElasticURL},
		Username:  cfg.ElasticUser,
		Password:  cfg.ElasticPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch info: %s", res.Status())
	}
	return client, nil
}

// ConnectMinIO connects and creates the bucket when it does not exist yet.
func ConnectMinIO(ctx context.Context, cfg config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinIOEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.MinIOBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinIOBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinIOBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.MinIOBucket, err)
		}
		if err := client.SetBucketPolicy(ctx, cfg.MinIOBucket, PublicReadPolicy(cfg.MinIOBucket)); err != nil {
			return nil, fmt.Errorf("set bucket policy %s: %w", cfg.MinIOBucket, err)
		}
	}
	return client, nil
}

// PublicReadPolicy lets anonymous clients fetch product images, which are served by URL.
func PublicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},`+
		`"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/products/*"]}]}`, bucket)
}
