package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/certsplit/internal/config"
	"github.com/Lllllllleong/certsplit/internal/models"
	"github.com/Lllllllleong/certsplit/internal/services"
)

var (
	certificateFunction *services.CertificateFunction
	once                sync.Once
	initErr             error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ProcessCertificates", processCertificates)
}

// main is required by the Go Functions Framework.
func main() {}

func processCertificates(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg *config.Config
		cfg, initErr = config.Load(os.Getenv("CERTSPLIT_CONFIG"))
		if initErr != nil {
			return
		}
		// Cloud Logging parses JSON lines.
		if _, ok := os.LookupEnv("LOG_FORMAT"); !ok {
			cfg.Log.Format = "json"
		}
		logger := cfg.Log.NewLogger(os.Stdout)
		slog.SetDefault(logger)
		certificateFunction, initErr = services.NewCertificateFunctionFromConfig(context.Background(), cfg, logger)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return certificateFunction.Process(ctx, gcsEvent)
}
