package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// dynamoAPI is the subset of *dynamodb.Client used here.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// newDynamoClient builds a DynamoDB client, honouring DYNAMODB_ENDPOINT for
// DynamoDB Local.
func newDynamoClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.AWSRegion))

	if cfg.DynamoEndpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.DynamoEndpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg), nil
}

// DynamoThresholdStore implements ThresholdStore using DynamoDB. Each user
// is one item with a "thresholds" map attribute.
type DynamoThresholdStore struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoThresholdStore returns a store writing to tableName.
func NewDynamoThresholdStore(client dynamoAPI, tableName string) *DynamoThresholdStore {
	return &DynamoThresholdStore{client: client, tableName: tableName}
}

func (s *DynamoThresholdStore) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "USER#" + userID},
	}
}

func (s *DynamoThresholdStore) Get(ctx context.Context, userID string) (nutrition.Thresholds, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(userID),
	})
	if err != nil {
		return nutrition.Thresholds{}, false, fmt.Errorf("GetItem: %w", err)
	}

	if out.Item == nil {
		return nutrition.Thresholds{}, false, nil
	}

	th, err := unmarshalThresholds(out.Item)
	if err != nil {
		return nutrition.Thresholds{}, false, err
	}
	return th, true, nil
}

func (s *DynamoThresholdStore) Put(ctx context.Context, userID string, th nutrition.Thresholds) error {
	values := make(map[string]types.AttributeValue, len(nutrition.Nutrients))
	for _, n := range nutrition.Nutrients {
		values[string(n)] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(th.Get(n), 'f', -1, 64)}
	}

	item := s.key(userID)
	item["thresholds"] = &types.AttributeValueMemberM{Value: values}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem: %w", err)
	}

	return nil
}

func (s *DynamoThresholdStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key:       s.key(userID),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem: %w", err)
	}

	return nil
}

// unmarshalThresholds extracts the thresholds map from a DynamoDB item.
// Nutrients missing from the item keep their default value.
func unmarshalThresholds(item map[string]types.AttributeValue) (nutrition.Thresholds, error) {
	th := nutrition.DefaultThresholds

	attr, ok := item["thresholds"]
	if !ok {
		return th, nil
	}
	m, ok := attr.(*types.AttributeValueMemberM)
	if !ok {
		return nutrition.Thresholds{}, fmt.Errorf("thresholds attribute is not a map")
	}

	for _, n := range nutrition.Nutrients {
		v, ok := m.Value[string(n)].(*types.AttributeValueMemberN)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nutrition.Thresholds{}, fmt.Errorf("threshold %s: %w", n, err)
		}
		th = th.With(n, f)
	}
	return th, nil
}
