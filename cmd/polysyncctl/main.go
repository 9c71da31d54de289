package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	geojsonadapter "github.com/samirrijal/polysync/internal/adapters/geojson"
	natsadapter "github.com/samirrijal/polysync/internal/adapters/nats"
	"github.com/samirrijal/polysync/internal/adapters/postgres"
	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/usecases"
	"github.com/samirrijal/polysync/internal/pkg/config"
	"github.com/samirrijal/polysync/internal/pkg/logging"
)

var (
	datasetFile string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "polysyncctl",
	Short: "Operator tooling for the polysync boundary dataset and path feed",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.SetupStderr(level, "text")
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a GeoJSON boundary file into PostGIS",
	Long:  `Decode a GeoJSON FeatureCollection the same way the API does and upsert every drawable feature into the boundaries table.`,
	RunE:  runImport,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load a GeoJSON boundary file and report what the API would serve",
	RunE:  runInspect,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print path updates published by edit sessions",
	RunE:  runWatch,
}

var (
	batchSize   int
	bboxFlag    string
	emitGeoJSON bool
	sessionID   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&datasetFile, "file", "f", "", "GeoJSON dataset path (default: dataset.path from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	importCmd.Flags().IntVarP(&batchSize, "batch", "b", 500, "Features per upsert batch")

	inspectCmd.Flags().StringVar(&bboxFlag, "bbox", "", "Only report features intersecting min_lat,min_lng,max_lat,max_lng")
	inspectCmd.Flags().BoolVar(&emitGeoJSON, "geojson", false, "Write the selected features as a FeatureCollection to stdout")

	watchCmd.Flags().StringVarP(&sessionID, "session", "s", "", "Only show updates for this session")

	rootCmd.AddCommand(importCmd, inspectCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func fileRepo(cfg *config.Config) *geojsonadapter.FileRepo {
	path := datasetFile
	if path == "" {
		path = cfg.Dataset.Path
	}
	return geojsonadapter.NewFileRepo(path, geojsonadapter.Decoder{
		IDProperty:   cfg.Dataset.IDProperty,
		NameProperty: cfg.Dataset.NameProperty,
		Logger:       slog.Default(),
	})
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("polysyncctl")
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	features, err := fileRepo(cfg).List(ctx)
	if err != nil {
		return err
	}

	// Same filter the API applies on load.
	kept := features[:0]
	for _, f := range features {
		if f.Renderable() {
			kept = append(kept, f)
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	repo := postgres.NewBoundaryRepo(db, slog.Default())

	if batchSize <= 0 {
		batchSize = 500
	}
	start := time.Now()
	for i := 0; i < len(kept); i += batchSize {
		end := min(i+batchSize, len(kept))
		if err := repo.UpsertBatch(ctx, kept[i:end]); err != nil {
			return fmt.Errorf("upsert features %d-%d: %w", i, end, err)
		}
		if verbose {
			fmt.Printf("upserted %d/%d\n", end, len(kept))
		}
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d features (%d skipped) in %v; table now holds %d\n",
		len(kept), len(features)-len(kept), time.Since(start).Round(time.Millisecond), total)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("polysyncctl")
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	repo := fileRepo(cfg)
	raw, err := repo.List(ctx)
	if err != nil {
		return err
	}

	svc := usecases.NewBoundaryService(repo, nil, slog.Default())
	n, err := svc.Load(ctx)
	if err != nil {
		return err
	}

	selected := svc.All()
	if bboxFlag != "" {
		b, err := parseBBox(bboxFlag)
		if err != nil {
			return err
		}
		if selected, err = svc.Within(ctx, b); err != nil {
			return err
		}
	}

	if emitGeoJSON {
		data, err := geojsonadapter.BoundaryCollection(selected).MarshalJSON()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	fmt.Printf("decoded:  %d\n", len(raw))
	fmt.Printf("indexed:  %d\n", n)
	fmt.Printf("skipped:  %d\n", len(raw)-n)
	if bboxFlag != "" {
		fmt.Printf("in bbox:  %d\n", len(selected))
	}
	if verbose {
		for _, f := range selected {
			fmt.Printf("  %-8s %-40s %d vertices\n", f.ID, f.Name, f.Path.Len())
		}
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("polysyncctl")
	if err != nil {
		return err
	}

	if sessionID != "" {
		if _, err := uuid.Parse(sessionID); err != nil {
			return fmt.Errorf("--session: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, slog.Default())
	if err != nil {
		return err
	}
	defer sub.Close()

	enc := json.NewEncoder(os.Stdout)
	err = sub.SubscribePathUpdates(ctx, sessionID, func(ctx context.Context, u domain.PathUpdate) error {
		return enc.Encode(u)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", natsadapter.PathSubject(sessionID))
	<-ctx.Done()
	return nil
}

func parseBBox(s string) (domain.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return domain.Bounds{}, fmt.Errorf("bbox: want min_lat,min_lng,max_lat,max_lng, got %q", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.Bounds{}, fmt.Errorf("bbox: %w", err)
		}
		vals[i] = v
	}
	return domain.Bounds{MinLat: vals[0], MinLng: vals[1], MaxLat: vals[2], MaxLng: vals[3]}, nil
}
