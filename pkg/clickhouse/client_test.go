package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Host: "ch", UseHTTP: true, MaxOpen: 2, MaxIdle: 8}.withDefaults()
	if cfg.Port != 8123 || cfg.Database != "default" {
		t.Fatalf("got port=%d db=%q", cfg.Port, cfg.Database)
	}
	if cfg.MaxIdle != 2 {
		t.Fatalf("idle conns must not exceed open conns, got %d", cfg.MaxIdle)
	}
	if (Config{Host: "ch"}).withDefaults().Port != 9000 {
		t.Fatalf("native protocol must default to 9000")
	}
}

func TestConfigOptions(t *testing.T) {
	o := Config{Host: "ch", Port: 9440, User: "u", MaxExecTime: 30 * time.Second}.withDefaults().options()
	if o.Addr[0] != "ch:9440" || o.Protocol != ch.Native || o.Auth.Username != "u" {
		t.Fatalf("unexpected options %+v", o)
	}
	if o.Settings["max_execution_time"] != 30 {
		t.Fatalf("max_execution_time %v", o.Settings["max_execution_time"])
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error without host")
	}
}
