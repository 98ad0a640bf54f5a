package main

import (
	"context"
	"gcdfetch/cmd/gcdfetch/commands"
	"gcdfetch/lib/osutil"
	"gcdfetch/lib/telemetry"
	"log/slog"
	"os"
	"time"
)

func main() {
	ctx, cancel := osutil.SignalContext(context.Background())

	tel, err := telemetry.SetupFromEnv(ctx, "gcdfetch")
	if err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	err = tel.Shutdown(shutdownCtx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
	cancelShutdown()
	cancel()

	os.Exit(code)
}
