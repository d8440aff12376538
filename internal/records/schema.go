package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type tableAdminAPI interface {
	DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// TableDefinitions returns the CreateTable inputs for all four tables.
// Profiles are keyed by email; appointments and prescriptions by id with
// doctorId/patientId secondary indexes.
func TableDefinitions(tables Tables) []*dynamodb.CreateTableInput {
	return []*dynamodb.CreateTableInput{
		hashKeyTable(tables.Doctors, "email"),
		hashKeyTable(tables.Patients, "email"),
		hashKeyTable(tables.Appointments, "id", DoctorIndex, PatientIndex),
		hashKeyTable(tables.Prescriptions, "id", DoctorIndex, PatientIndex),
	}
}

// EnsureTables creates any missing table and returns the names it created.
// When wait is positive it blocks until each new table is active.
func EnsureTables(ctx context.Context, client tableAdminAPI, tables Tables, wait time.Duration) ([]string, error) {
	if client == nil {
		return nil, errors.New("records: dynamodb client cannot be nil")
	}
	if err := tables.validate(); err != nil {
		return nil, err
	}

	var created []string
	for _, def := range TableDefinitions(tables) {
		name := aws.ToString(def.TableName)
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: def.TableName})
		if err == nil {
			continue
		}
		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return created, fmt.Errorf("records: describe table %s: %w", name, err)
		}
		if _, err := client.CreateTable(ctx, def); err != nil {
			var inUse *types.ResourceInUseException
			if errors.As(err, &inUse) {
				continue
			}
			return created, fmt.Errorf("records: create table %s: %w", name, err)
		}
		created = append(created, name)

		if wait > 0 {
			waiter := dynamodb.NewTableExistsWaiter(client)
			if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: def.TableName}, wait); err != nil {
				return created, fmt.Errorf("records: wait for table %s: %w", name, err)
			}
		}
	}
	return created, nil
}

func hashKeyTable(name, key string, indexes ...string) *dynamodb.CreateTableInput {
	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(key), AttributeType: types.ScalarAttributeTypeS},
	}
	var gsis []types.GlobalSecondaryIndex
	for _, index := range indexes {
		attr := indexAttribute(index)
		attrs = append(attrs, types.AttributeDefinition{
			AttributeName: aws.String(attr),
			AttributeType: types.ScalarAttributeTypeS,
		})
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName: aws.String(index),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	input := &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		AttributeDefinitions: attrs,
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(key), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
	if len(gsis) > 0 {
		input.GlobalSecondaryIndexes = gsis
	}
	return input
}

func indexAttribute(index string) string {
	switch index {
	case DoctorIndex:
		return "doctorId"
	case PatientIndex:
		return "patientId"
	default:
		return index
	}
}
