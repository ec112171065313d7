package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// fakeDynamo keeps items in memory keyed by PK.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pk(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[pk(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.items[pk(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, pk(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoThresholdStore_RoundTrip(t *testing.T) {
	fake := newFakeDynamo()
	store := NewDynamoThresholdStore(fake, "thresholds")
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "user1"); err != nil || found {
		t.Fatalf("expected no item, got found=%v err=%v", found, err)
	}

	want := nutrition.Thresholds{MaxCalories: 250.5, MinProtein: 3, MaxFat: 7, MaxCarbs: 40, MaxSugar: 6, MinFiber: 2}
	if err := store.Put(ctx, "user1", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := fake.items["USER#user1"]; !ok {
		t.Fatalf("expected item keyed USER#user1, have %v", fake.items)
	}

	got, found, err := store.Get(ctx, "user1")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := store.Delete(ctx, "user1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "user1"); found {
		t.Fatal("expected item to be deleted")
	}
}

func TestDynamoThresholdStore_PartialItem(t *testing.T) {
	fake := newFakeDynamo()
	fake.items["USER#user1"] = map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "USER#user1"},
		"thresholds": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"sugar": &types.AttributeValueMemberN{Value: "3"},
		}},
	}
	store := NewDynamoThresholdStore(fake, "thresholds")

	got, _, err := store.Get(context.Background(), "user1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := nutrition.DefaultThresholds
	want.MaxSugar = 3
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestDynamoThresholdStore_BadAttribute(t *testing.T) {
	fake := newFakeDynamo()
	fake.items["USER#user1"] = map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: "USER#user1"},
		"thresholds": &types.AttributeValueMemberS{Value: "oops"},
	}
	store := NewDynamoThresholdStore(fake, "thresholds")

	if _, _, err := store.Get(context.Background(), "user1"); err == nil {
		t.Fatal("expected error for non-map thresholds attribute")
	}
}

func TestDynamoThresholdStore_ClientError(t *testing.T) {
	fake := newFakeDynamo()
	fake.err = errors.New("throttled")
	store := NewDynamoThresholdStore(fake, "thresholds")
	ctx := context.Background()

	if _, _, err := store.Get(ctx, "user1"); err == nil {
		t.Fatal("expected Get error")
	}
	if err := store.Put(ctx, "user1", nutrition.DefaultThresholds); err == nil {
		t.Fatal("expected Put error")
	}
	if err := store.Delete(ctx, "user1"); err == nil {
		t.Fatal("expected Delete error")
	}
}

// Integration tests require DynamoDB Local running on DYNAMODB_ENDPOINT.
// Run with: DYNAMODB_ENDPOINT=http://localhost:8000 go test -run Integration ./...

func skipIfNoEndpoint(t *testing.T) {
	t.Helper()
	if os.Getenv("DYNAMODB_ENDPOINT") == "" {
		t.Skip("DYNAMODB_ENDPOINT not set; skipping integration test")
	}
}

func TestIntegration_ThresholdsPutGetDelete(t *testing.T) {
	skipIfNoEndpoint(t)
	// Dummy credentials for DynamoDB Local
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	ctx := context.Background()
	client, err := newDynamoClient(ctx, Config{
		AWSRegion:      "us-east-1",
		DynamoEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	store := NewDynamoThresholdStore(client, "user-thresholds")
	userID := "integration-test-user-1"
	defer store.Delete(ctx, userID)

	if err := store.Put(ctx, userID, nutrition.DefaultThresholds); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, found, err := store.Get(ctx, userID)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got != nutrition.DefaultThresholds {
		t.Fatalf("expected defaults, got %+v", got)
	}
}
