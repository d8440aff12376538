package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/wolfman30/medtrack/pkg/logging"
)

// Secondary indexes on the appointment and prescription tables.
const (
	DoctorIndex  = "doctorId-index"
	PatientIndex = "patientId-index"
)

// Tables names the four DynamoDB tables.
type Tables struct {
	Doctors       string
	Patients      string
	Appointments  string
	Prescriptions string
}

func (t Tables) validate() error {
	if strings.TrimSpace(t.Doctors) == "" || strings.TrimSpace(t.Patients) == "" ||
		strings.TrimSpace(t.Appointments) == "" || strings.TrimSpace(t.Prescriptions) == "" {
		return errors.New("records: all four table names are required")
	}
	return nil
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore implements Store on DynamoDB.
type DynamoStore struct {
	doctors       *dynamoProfiles
	patients      *dynamoProfiles
	appointments  *dynamoAppointments
	prescriptions *dynamoPrescriptions
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tables Tables, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("records: dynamodb client cannot be nil")
	}
	if err := tables.validate(); err != nil {
		panic(err.Error())
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		doctors:       &dynamoProfiles{client: client, table: tables.Doctors, logger: logger},
		patients:      &dynamoProfiles{client: client, table: tables.Patients, logger: logger},
		appointments:  &dynamoAppointments{client: client, table: tables.Appointments, logger: logger},
		prescriptions: &dynamoPrescriptions{client: client, table: tables.Prescriptions, logger: logger},
	}
}

func (s *DynamoStore) Doctors() ProfileRepository { return s.doctors }
func (s *DynamoStore) Patients() ProfileRepository { return s.patients }
func (s *DynamoStore) Appointments() AppointmentRepository { return s.appointments }
func (s *DynamoStore) Prescriptions() PrescriptionRepository { return s.prescriptions }

type dynamoProfiles struct {
	client dynamoAPI
	table  string
	logger *logging.Logger
}

func (r *dynamoProfiles) Create(ctx context.Context, profile *Profile) error {
	if profile == nil || profile.Email == "" {
		return errors.New("records: profile email required")
	}
	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("records: marshal profile: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(email)"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			r.logger.Debug("profile email already registered", "table", r.table, "email", profile.Email)
			return ErrAlreadyExists
		}
		return fmt.Errorf("records: create profile in %s: %w", r.table, err)
	}
	return nil
}

func (r *dynamoProfiles) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	if email == "" {
		return nil, ErrNotFound
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       stringKey("email", email),
	})
	if err != nil {
		return nil, fmt.Errorf("records: get profile from %s: %w", r.table, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var profile Profile
	if err := attributevalue.UnmarshalMap(out.Item, &profile); err != nil {
		return nil, fmt.Errorf("records: decode profile: %w", err)
	}
	return &profile, nil
}

func (r *dynamoProfiles) Update(ctx context.Context, email string, update ProfileUpdate) (*Profile, error) {
	names := map[string]string{
		"#name":    "name",
		"#phone":   "phone",
		"#gender":  "gender",
		"#updated": "updatedAt",
	}
	values := map[string]types.AttributeValue{
		":name":    &types.AttributeValueMemberS{Value: update.Name},
		":phone":   &types.AttributeValueMemberS{Value: update.Phone},
		":gender":  &types.AttributeValueMemberS{Value: update.Gender},
		":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	expression := "SET #name = :name, #phone = :phone, #gender = :gender, #updated = :updated"
	if update.PasswordHash != "" {
		names["#password"] = "password"
		values[":password"] = &types.AttributeValueMemberS{Value: update.PasswordHash}
		expression += ", #password = :password"
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       stringKey("email", email),
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(email)"),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("records: update profile in %s: %w", r.table, err)
	}
	var profile Profile
	if err := attributevalue.UnmarshalMap(out.Attributes, &profile); err != nil {
		return nil, fmt.Errorf("records: decode profile: %w", err)
	}
	return &profile, nil
}

func (r *dynamoProfiles) Put(ctx context.Context, profile *Profile) error {
	if profile == nil || profile.Email == "" {
		return errors.New("records: profile email required")
	}
	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("records: marshal profile: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("records: put profile in %s: %w", r.table, err)
	}
	return nil
}

func (r *dynamoProfiles) List(ctx context.Context) ([]Profile, error) {
	var out []Profile
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName: aws.String(r.table),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("records: scan %s: %w", r.table, err)
		}
		var batch []Profile
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("records: decode profiles: %w", err)
		}
		out = append(out, batch...)
	}
	sortProfiles(out)
	return out, nil
}

type dynamoAppointments struct {
	client dynamoAPI
	table  string
	logger *logging.Logger
}

func (r *dynamoAppointments) Create(ctx context.Context, appt *Appointment) error {
	if appt == nil || appt.ID == "" {
		return errors.New("records: appointment id required")
	}
	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return fmt.Errorf("records: marshal appointment: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return ErrAlreadyExists
		}
		return fmt.Errorf("records: create appointment: %w", err)
	}
	return nil
}

func (r *dynamoAppointments) Get(ctx context.Context, id string) (*Appointment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       stringKey("id", id),
	})
	if err != nil {
		return nil, fmt.Errorf("records: get appointment %s: %w", id, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var appt Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &appt); err != nil {
		return nil, fmt.Errorf("records: decode appointment: %w", err)
	}
	return &appt, nil
}

func (r *dynamoAppointments) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return r.listByIndex(ctx, DoctorIndex, "doctorId", doctorID)
}

func (r *dynamoAppointments) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return r.listByIndex(ctx, PatientIndex, "patientId", patientID)
}

func (r *dynamoAppointments) listByIndex(ctx context.Context, index, attr, value string) ([]Appointment, error) {
	items, err := queryIndex(ctx, r.client, r.table, index, attr, value)
	if err != nil {
		return nil, err
	}
	out := []Appointment{}
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("records: decode appointments: %w", err)
	}
	sortAppointments(out)
	return out, nil
}

func (r *dynamoAppointments) AttachPrescription(ctx context.Context, id, text string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.table),
		Key:              stringKey("id", id),
		UpdateExpression: aws.String("SET #prescription = :text, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#prescription": "prescription",
			"#updated":      "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":text":    &types.AttributeValueMemberS{Value: text},
			":empty":   &types.AttributeValueMemberS{Value: ""},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression:                 aws.String("attribute_exists(id) AND (attribute_not_exists(#prescription) OR #prescription = :empty)"),
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		if ccf, ok := conditionFailed(err); ok {
			if len(ccf.Item) == 0 {
				return ErrNotFound
			}
			r.logger.Debug("appointment already prescribed", "appointment_id", id)
			return ErrConflict
		}
		return fmt.Errorf("records: attach prescription to %s: %w", id, err)
	}
	return nil
}

type dynamoPrescriptions struct {
	client dynamoAPI
	table  string
	logger *logging.Logger
}

func (r *dynamoPrescriptions) Create(ctx context.Context, p *Prescription) error {
	if p == nil || p.ID == "" {
		return errors.New("records: prescription id required")
	}
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("records: marshal prescription: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if _, ok := conditionFailed(err); ok {
			return ErrAlreadyExists
		}
		return fmt.Errorf("records: create prescription: %w", err)
	}
	r.logger.Debug("prescription stored", "prescription_id", p.ID, "appointment_id", p.AppointmentID)
	return nil
}

func (r *dynamoPrescriptions) ListByPatient(ctx context.Context, patientID string) ([]Prescription, error) {
	return r.listByIndex(ctx, PatientIndex, "patientId", patientID)
}

func (r *dynamoPrescriptions) ListByDoctor(ctx context.Context, doctorID string) ([]Prescription, error) {
	return r.listByIndex(ctx, DoctorIndex, "doctorId", doctorID)
}

func (r *dynamoPrescriptions) listByIndex(ctx context.Context, index, attr, value string) ([]Prescription, error) {
	items, err := queryIndex(ctx, r.client, r.table, index, attr, value)
	if err != nil {
		return nil, err
	}
	out := []Prescription{}
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("records: decode prescriptions: %w", err)
	}
	sortPrescriptions(out)
	return out, nil
}

func queryIndex(ctx context.Context, client dynamoAPI, table, index, attr, value string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(client, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#key = :value"),
		ExpressionAttributeNames:  map[string]string{"#key": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":value": &types.AttributeValueMemberS{Value: value}},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("records: query %s.%s: %w", table, index, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func conditionFailed(err error) (*types.ConditionalCheckFailedException, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf, true
	}
	return nil, false
}
