// Command pullstreamdemo runs a small pull-based pipeline described by a
// TOML configuration file: creators.Range feeds operators.Buffer, whose
// batches are flattened back into a single stream of squared integers via
// mergeall, with an OpenTelemetry Observer reporting active-inner counts
// along the way. Grounded on microbatch/example_test.go's demonstration
// style — a complete, runnable program exercising the library end to end,
// rather than a production service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	pullstream "github.com/joeycumines/go-pullstream"
	"github.com/joeycumines/go-pullstream/consumers"
	"github.com/joeycumines/go-pullstream/creators"
	"github.com/joeycumines/go-pullstream/mergeall"
	"github.com/joeycumines/go-pullstream/operators"
	"github.com/joeycumines/go-pullstream/telemetry"
)

// pipelineConfig is the shape of the TOML file this command reads. Fields
// the file omits keep their defaultConfig values; a field the file sets,
// even to zero, is used as given.
type pipelineConfig struct {
	Range struct {
		Start int `toml:"start"`
		Count int `toml:"count"`
	} `toml:"range"`
	Buffer struct {
		Size int `toml:"size"`
	} `toml:"buffer"`
	Merge struct {
		Concurrency int `toml:"concurrency"`
	} `toml:"merge"`
}

func defaultConfig() pipelineConfig {
	var cfg pipelineConfig
	cfg.Range.Start = 0
	cfg.Range.Count = 20
	cfg.Buffer.Size = 4
	cfg.Merge.Concurrency = 3
	return cfg
}

func loadConfig(path string) (pipelineConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return pipelineConfig{}, fmt.Errorf("pullstreamdemo: decoding %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to a TOML pipeline configuration file (optional)")
	flag.Parse()

	pullstream.SetLogger(pullstream.LoggerFunc(func(level pullstream.LogLevel, msg string, fields ...any) {
		var b strings.Builder
		b.WriteString(level.String())
		b.WriteString(": ")
		b.WriteString(msg)
		for i := 0; i+1 < len(fields); i += 2 {
			fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
		}
		log.Println(b.String())
	}))

	if err := run(*configPath); err != nil {
		log.Fatal(err)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	defer setupMeterProvider()()

	observer := telemetry.NewOTelObserver()

	ctx := context.Background()

	numbers := creators.Range(cfg.Range.Start, cfg.Range.Count)
	batches := operators.Buffer(numbers, cfg.Buffer.Size)

	squared := mergeall.MergeAll(batches, func(batch []int) (pullstream.Source[int], error) {
		return operators.Map(creators.Of(batch...), func(n int) int { return n * n }), nil
	}, mergeall.WithConcurrency(cfg.Merge.Concurrency), mergeall.WithObserver(observer))

	results, err := consumers.ToArray(ctx, squared)
	if err != nil {
		return fmt.Errorf("pullstreamdemo: pipeline failed: %w", err)
	}

	for _, v := range results {
		fmt.Println(v)
	}
	return nil
}

// setupMeterProvider wires a minimal, exporter-less SDK MeterProvider so
// telemetry.NewOTelObserver's instruments have somewhere real to record to;
// there's no metrics backend in this demo, so a ManualReader stands in for
// whatever periodic exporter a real deployment would configure.
func setupMeterProvider() (shutdown func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.Default()),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(provider)

	return func() {
		ctx := context.Background()
		if err := provider.Shutdown(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "pullstreamdemo: shutting down meter provider:", err)
		}
	}
}
