package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/tradecore/access-management/internal/rbac"
	rbacPostgres "github.com/tradecore/access-management/internal/rbac/postgres"
	"github.com/tradecore/access-management/pkg/logger"
)

// sweepCmd runs one demotion pass and exits, for cron-style deployments that
// prefer an external scheduler over the in-process one.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Demote stale unassigned users once and exit",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		logger.Init(cfg.Logging.Format, cfg.Logging.Level)
		lg := logger.LoggerWrapper()

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		assignment := rbac.NewAssignmentService(rbacPostgres.NewRepository(db), lg)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		demoted, err := assignment.DemoteStaleUnassignedUsers(ctx)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		lg.Info("sweep finished", "demoted", demoted)
	},
}
