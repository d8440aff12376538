package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	appconfig "github.com/wolfman30/medtrack/internal/config"
	"github.com/wolfman30/medtrack/internal/records"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// TablesFromConfig maps configured table names onto records.Tables.
func TablesFromConfig(cfg *appconfig.Config) records.Tables {
	return records.Tables{
		Doctors:       cfg.DoctorsTable,
		Patients:      cfg.PatientsTable,
		Appointments:  cfg.AppointmentsTable,
		Prescriptions: cfg.PrescriptionsTable,
	}
}

// BuildRecordStore returns the persistence port for the configured backend.
// With AUTO_CREATE_TABLES the DynamoDB tables are created first when missing.
func BuildRecordStore(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (records.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory record store; data is lost on restart")
		return records.NewMemoryStore(), nil
	case "", "dynamodb":
		client := dynamodb.NewFromConfig(awsCfg)
		tables := TablesFromConfig(cfg)
		if cfg.AutoCreateTables {
			created, err := records.EnsureTables(ctx, client, tables, 2*time.Minute)
			if err != nil {
				return nil, fmt.Errorf("bootstrap: ensure tables: %w", err)
			}
			if len(created) > 0 {
				logger.Info("created dynamodb tables", "tables", created)
			}
		}
		return records.NewDynamoStore(client, tables, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
	}
}
