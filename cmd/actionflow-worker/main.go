// ActionFlow Worker — эталонный worker со встроенными действиями.
//
// Worker запускается launcher'ом для одного узла:
//   - Читает ACTIONFLOW_NODE_ID и ACTIONFLOW_CALLBACK_URL
//   - Получает конфигурацию узла (INIT)
//   - Выполняет действие из конфигурации "action" (http, delay, transform)
//   - Шлёт heartbeat и останавливается по директиве stop
//   - Отправляет RESULT
package main

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/actionflow/internal/sdk"
	"github.com/shaiso/actionflow/internal/telemetry"
	"github.com/shaiso/actionflow/internal/worker"
)

func main() {
	// Логи в stderr, stdout остаётся за действием
	logCfg := telemetry.LogConfigFromEnv("actionflow-worker")
	logCfg.Output = os.Stderr
	logger := telemetry.NewLogger(logCfg)
	slog.SetDefault(logger)

	var (
		action    string
		heartbeat time.Duration
	)

	rootCmd := &cobra.Command{
		Use:           "actionflow-worker",
		Short:         "Run one ActionFlow node with a built-in action",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sdk.FromEnv()
			if err != nil {
				return err
			}

			logger := telemetry.WithNodeID(logger, client.NodeID())
			logger.Info("starting actionflow-worker", "default_action", action)

			ctx := telemetry.WithLogger(cmd.Context(), logger)
			return sdk.Run(ctx, client, heartbeat, worker.NewRegistry().Task(action))
		},
	}

	rootCmd.Flags().StringVar(&action, "action", "transform", "Action used when the node config has no \"action\" entry")
	rootCmd.Flags().DurationVar(&heartbeat, "heartbeat", 5*time.Second, "Heartbeat interval")

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, sdk.ErrStopped) {
			logger.Info("worker stopped by engine")
			os.Exit(0)
		}
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}
