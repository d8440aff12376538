package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medtrack/internal/records"
)

type fakeAdmin struct {
	existing map[string]bool
	created  []string
}

func (f *fakeAdmin) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	name := aws.ToString(in.TableName)
	if f.existing[name] {
		return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{TableName: in.TableName, TableStatus: types.TableStatusActive}}, nil
	}
	return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
}

func (f *fakeAdmin) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	name := aws.ToString(in.TableName)
	f.created = append(f.created, name)
	f.existing[name] = true
	return &dynamodb.CreateTableOutput{}, nil
}

var testTables = records.Tables{Doctors: "doctors", Patients: "patients", Appointments: "appointments", Prescriptions: "prescriptions"}

func TestRunUpCreatesMissingTables(t *testing.T) {
	admin := &fakeAdmin{existing: map[string]bool{"doctors": true}}
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), nil, testTables, admin, 0, &out))
	assert.Equal(t, []string{"patients", "appointments", "prescriptions"}, admin.created)
	assert.Contains(t, out.String(), "created tables: patients, appointments, prescriptions")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"up"}, testTables, admin, 0, &out))
	assert.Contains(t, out.String(), "tables already exist")
}

func TestRunPlanPrintsDefinitions(t *testing.T) {
	admin := &fakeAdmin{existing: map[string]bool{}}
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"plan"}, testTables, admin, 0, &out))
	assert.Empty(t, admin.created)
	assert.Contains(t, out.String(), "doctors key=email indexes=[]")
	assert.Contains(t, out.String(), "appointments key=id indexes=[doctorId-index,patientId-index]")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"force", "3"}, testTables, &fakeAdmin{existing: map[string]bool{}}, 0, &bytes.Buffer{})
	assert.Error(t, err)
}

type failingAdmin struct{ fakeAdmin }

func (f *failingAdmin) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return nil, errors.New("access denied")
}

func TestRunSurfacesDescribeErrors(t *testing.T) {
	err := run(context.Background(), nil, testTables, &failingAdmin{}, 0, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
