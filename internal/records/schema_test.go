package records

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableDefinitions_IndexesOnRecordTables(t *testing.T) {
	defs := TableDefinitions(testTables)
	require.Len(t, defs, 4)

	assert.Equal(t, "email", aws.ToString(defs[0].KeySchema[0].AttributeName))
	assert.Empty(t, defs[0].GlobalSecondaryIndexes)

	appts := defs[2]
	assert.Equal(t, "id", aws.ToString(appts.KeySchema[0].AttributeName))
	require.Len(t, appts.GlobalSecondaryIndexes, 2)
	assert.Equal(t, DoctorIndex, aws.ToString(appts.GlobalSecondaryIndexes[0].IndexName))
	assert.Equal(t, "patientId", aws.ToString(appts.GlobalSecondaryIndexes[1].KeySchema[0].AttributeName))
	assert.Equal(t, types.BillingModePayPerRequest, appts.BillingMode)
}

func TestEnsureTables_CreatesOnlyMissing(t *testing.T) {
	admin := &mockTableAdmin{existing: map[string]bool{"MedTrackDoctors": true, "MedTrackPatients": true}}

	created, err := EnsureTables(context.Background(), admin, testTables, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"MedTrackAppointments", "MedTrackPrescriptions"}, created)
	assert.Len(t, admin.created, 2)
}

func TestEnsureTables_PropagatesDescribeErrors(t *testing.T) {
	admin := &mockTableAdmin{describeErr: errors.New("access denied")}

	_, err := EnsureTables(context.Background(), admin, testTables, 0)
	assert.ErrorContains(t, err, "access denied")
}

type mockTableAdmin struct {
	existing    map[string]bool
	describeErr error
	created     []string
}

func (m *mockTableAdmin) DescribeTable(_ context.Context, input *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	name := aws.ToString(input.TableName)
	if m.existing[name] {
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: input.TableName, TableStatus: types.TableStatusActive}}, nil
	}
	return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
}

func (m *mockTableAdmin) CreateTable(_ context.Context, input *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	m.created = append(m.created, aws.ToString(input.TableName))
	return &dynamodb.CreateTableOutput{}, nil
}
