package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

// Config describes one ClickHouse endpoint. Zero fields take the defaults of
// withDefaults.
type Config struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	UseHTTP     bool
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
	DialTimeout time.Duration
	ReadTimeout time.Duration
	// MaxExecTime is sent as the max_execution_time setting of every query.
	MaxExecTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 9000
		if c.UseHTTP {
			c.Port = 8123
		}
	}
	if c.Database == "" {
		c.Database = "default"
	}
	if c.MaxOpen <= 0 {
		c.MaxOpen = 4
	}
	if c.MaxIdle <= 0 || c.MaxIdle > c.MaxOpen {
		c.MaxIdle = c.MaxOpen
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = 5 * time.Minute
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}

func (c Config) options() *ch.Options {
	o := &ch.Options{
		Addr: []string{net.JoinHostPort(c.Host, strconv.Itoa(c.Port))},
		Auth: ch.Auth{
			Database: c.Database,
			Username: c.User,
			Password: c.Password,
		},
		Protocol:    ch.Native,
		DialTimeout: c.DialTimeout,
		ReadTimeout: c.ReadTimeout,
	}
	if c.UseHTTP {
		o.Protocol = ch.HTTP
	}
	if c.MaxExecTime > 0 {
		o.Settings = ch.Settings{"max_execution_time": int(c.MaxExecTime.Seconds())}
	}
	return o
}

// Client is a pooled database/sql handle on ClickHouse.
type Client struct {
	db *sql.DB
}

// NewClient opens the pool and pings it once.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("clickhouse: host is required")
	}
	cfg = cfg.withDefaults()

	db := ch.OpenDB(cfg.options())
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Client{db: db}, nil
}

func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InitSchema runs idempotent DDL statements in order.
func (c *Client) InitSchema(ctx context.Context, stmts []string) error {
	for i, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema statement %d: %w", i, err)
		}
	}
	return nil
}
