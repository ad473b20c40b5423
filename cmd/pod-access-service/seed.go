package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/podworks/pod-access-service/internal/domain"
	"github.com/podworks/pod-access-service/internal/repository"
)

// newSeedPodCommand registers a pod row so bookings against it can be
// tested without hand-writing SQL.
func newSeedPodCommand() *cobra.Command {
	var (
		driver   string
		dsn      string
		name     string
		address  string
		deviceID string
		rate     float64
	)

	cmd := &cobra.Command{
		Use:   "seed-pod",
		Short: "Insert a pod into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
			var (
				db  *gorm.DB
				err error
			)
			switch driver {
			case "postgres":
				db, err = gorm.Open(postgres.Open(dsn), gormCfg)
			case "sqlite":
				db, err = gorm.Open(sqlite.Open(dsn), gormCfg)
			default:
				return fmt.Errorf("unsupported driver %q", driver)
			}
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if err := db.AutoMigrate(&domain.Pod{}); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			pod := &domain.Pod{
				ID:             uuid.NewString(),
				Name:           name,
				Address:        address,
				DeviceID:       deviceID,
				PricePerMinute: rate,
			}
			if err := repository.NewPodRepository(db).Create(pod); err != nil {
				return err
			}
			fmt.Println(pod.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "sqlite", "database driver (sqlite or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "file:pod-access.db", "database DSN")
	cmd.Flags().StringVar(&name, "name", "", "pod display name")
	cmd.Flags().StringVar(&address, "address", "", "street address shown to customers")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "smart lock device id")
	cmd.Flags().Float64Var(&rate, "rate", 0.50, "price per minute")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}
