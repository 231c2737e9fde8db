// Command audit replays the stock ledger and compares it with the location
// and product stock stores. It exits with status 2 when any product drifted.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/pflag"

	"github.com/wms-platform/fulfillment-service/internal/application"
	"github.com/wms-platform/fulfillment-service/internal/infrastructure/catalog"
	mongoRepo "github.com/wms-platform/fulfillment-service/internal/infrastructure/mongodb"
	"github.com/wms-platform/fulfillment-service/pkg/config"
	"github.com/wms-platform/fulfillment-service/pkg/logging"
	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	pkgmongo "github.com/wms-platform/fulfillment-service/pkg/mongodb"
)

const serviceName = "fulfillment-audit"

// driftError reports drifted products through the exit status
type driftError struct {
	drifted int
}

func (e *driftError) Error() string {
	return fmt.Sprintf("%d product(s) drifted from the ledger", e.drifted)
}

func (e *driftError) ExitCode() int { return 2 }

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintf(os.Stderr, "audit: %v\n", err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return err
	}

	var (
		productIDs  []string
		catalogFile = cfg.CatalogFile
		asJSON      bool
		timeout     time.Duration
	)
	flagSet := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	flagSet.StringSliceVarP(&productIDs, "product", "p", nil, "product to reconcile (repeatable; default: every product in the ledger)")
	flagSet.StringVar(&catalogFile, "catalog", catalogFile, "catalog YAML used to classify shelves")
	flagSet.StringVar(&cfg.MongoDB.URI, "mongodb-uri", cfg.MongoDB.URI, "MongoDB connection string")
	flagSet.StringVar(&cfg.MongoDB.Database, "database", cfg.MongoDB.Database, "MongoDB database")
	flagSet.BoolVar(&asJSON, "json", false, "print reports as JSON")
	flagSet.DurationVar(&timeout, "timeout", 5*time.Minute, "abort the audit after this long")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Output = os.Stderr
	logger := logging.New(logConfig)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cat := catalog.New()
	if catalogFile != "" {
		if cat, err = catalog.LoadFile(catalogFile); err != nil {
			return err
		}
	}

	cfg.MongoDB.Registry = mongoRepo.NewRegistry()
	client, err := pkgmongo.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	m := metrics.New(metrics.DefaultConfig(serviceName))
	store := mongoRepo.NewStore(client, m)
	queries := application.NewStockQueryService(store.Stock, store.Tx, cat, m, logger)

	return audit(ctx, queries, productIDs, stdout, asJSON)
}

// reconciler is the part of the stock query service the audit needs
type reconciler interface {
	Reconcile(ctx context.Context, productID string) (*application.ReconcileReportDTO, error)
	ReconcileAll(ctx context.Context) ([]*application.ReconcileReportDTO, error)
}

// audit reconciles productIDs, or every product when empty, and writes one
// line per product to out
func audit(ctx context.Context, queries reconciler, productIDs []string, out io.Writer, asJSON bool) error {
	var reports []*application.ReconcileReportDTO
	if len(productIDs) == 0 {
		all, err := queries.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		reports = all
	} else {
		for _, id := range productIDs {
			report, err := queries.Reconcile(ctx, id)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", id, err)
			}
			reports = append(reports, report)
		}
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ProductID < reports[j].ProductID })

	drifted := 0
	for _, r := range reports {
		if !r.Consistent {
			drifted++
		}
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			status := "ok"
			if !r.Consistent {
				status = "DRIFT"
			}
			fmt.Fprintf(out, "%-24s %-5s movements=%d\n", r.ProductID, status, r.MovementCount)
			for _, d := range r.Drifts {
				fmt.Fprintf(out, "    %s shelf=%s expected=%d actual=%d\n", d.Field, d.ShelfID, d.Expected, d.Actual)
			}
		}
		fmt.Fprintf(out, "%d product(s) checked, %d drifted\n", len(reports), drifted)
	}

	if drifted > 0 {
		return &driftError{drifted: drifted}
	}
	return nil
}
