// Command migrate creates the DynamoDB tables MedTrack needs.
//
//	migrate        create missing tables and wait until they are active
//	migrate plan   print the tables and indexes that would be created
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/wolfman30/medtrack/cmd/mainconfig"
	"github.com/wolfman30/medtrack/internal/app/bootstrap"
	appconfig "github.com/wolfman30/medtrack/internal/config"
	"github.com/wolfman30/medtrack/internal/records"
)

const tableWait = 2 * time.Minute

type tableAdmin interface {
	DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	ctx := context.Background()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)
	if err := run(ctx, os.Args[1:], bootstrap.TablesFromConfig(cfg), client, tableWait, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string, tables records.Tables, client tableAdmin, wait time.Duration, out io.Writer) error {
	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "plan":
		for _, def := range records.TableDefinitions(tables) {
			indexes := make([]string, 0, len(def.GlobalSecondaryIndexes))
			for _, gsi := range def.GlobalSecondaryIndexes {
				indexes = append(indexes, aws.ToString(gsi.IndexName))
			}
			fmt.Fprintf(out, "%s key=%s indexes=[%s]\n",
				aws.ToString(def.TableName),
				aws.ToString(def.KeySchema[0].AttributeName),
				strings.Join(indexes, ","))
		}
		return nil
	case "up":
		created, err := records.EnsureTables(ctx, client, tables, wait)
		if err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
		if len(created) == 0 {
			fmt.Fprintln(out, "tables already exist")
			return nil
		}
		fmt.Fprintf(out, "created tables: %s\n", strings.Join(created, ", "))
		return nil
	default:
		return fmt.Errorf("unknown command %q (want up or plan)", cmd)
	}
}
