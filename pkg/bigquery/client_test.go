package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/marketreports-backend/pkg/config"
)

func TestConfiguredTables(t *testing.T) {
	cfg := config.BigQueryConfig{
		BookingsTable: " service_titan_jobs ",
		EventsTable:   "",
	}

	tables := configuredTables(cfg)

	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	if tables[0] != "service_titan_jobs" {
		t.Fatalf("expected service_titan_jobs, got %s", tables[0])
	}
}

func TestClientOptionsPrioritizesJSON(t *testing.T) {
	gcp := config.GCPConfig{
		CredentialsJSON:        `{"dummy": "value"}`,
		ApplicationCredentials: "/tmp/creds",
	}

	opts := clientOptions(gcp)
	if len(opts) != 1 {
		t.Fatalf("expected 1 option, got %d", len(opts))
	}
}

func TestClientOptionsEmpty(t *testing.T) {
	opts := clientOptions(config.GCPConfig{})
	if len(opts) != 0 {
		t.Fatalf("expected 0 options when no credentials provided, got %d", len(opts))
	}
}

func TestTableRef(t *testing.T) {
	got := TableRef(" acme-prod ", "market_reports", "log_events ")
	if got != "`acme-prod.market_reports.log_events`" {
		t.Fatalf("unexpected table ref %s", got)
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if err := c.Ping(context.Background()); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := c.Query(context.Background(), "SELECT 1", nil); !errors.Is(err, errClientNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if c.Table("x") != "" {
		t.Fatal("expected empty table ref for nil client")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.BigQueryConfig{Dataset: "d", BookingsTable: "t"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{}, nil); !errors.Is(err, errDatasetRequired) {
		t.Fatalf("expected dataset error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "d"}, nil); !errors.Is(err, errTableNameRequired) {
		t.Fatalf("expected table error, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})) {
		t.Fatal("expected 404 to be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("expected 403 not to be not found")
	}
}
