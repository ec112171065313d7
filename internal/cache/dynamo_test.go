package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// fakeDynamo keeps items in memory keyed by PK.
type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
	gets  int
	puts  int
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func pkOf(key map[string]types.AttributeValue) string {
	return key["PK"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[pkOf(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts++
	if f.err != nil {
		return nil, f.err
	}
	f.items[pkOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoBackend_MissingItemIsCreated(t *testing.T) {
	fake := newFakeDynamo()
	b := NewDynamoBackend(fake, "nutrition-cache", "default")

	records, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty, got %v", records)
	}
	if fake.puts != 1 {
		t.Fatalf("expected the empty document to be written, puts=%d", fake.puts)
	}
	if _, ok := fake.items["CACHE#default"]; !ok {
		t.Fatal("expected item keyed CACHE#default")
	}
}

func TestDynamoBackend_RoundTrip(t *testing.T) {
	fake := newFakeDynamo()
	b := NewDynamoBackend(fake, "nutrition-cache", "default")
	want := map[string]nutrition.Record{
		"1": oats,
		"2": {Name: "Water"},
	}

	if err := b.Save(context.Background(), want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got["1"] != oats || got["2"] != want["2"] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDynamoBackend_Errors(t *testing.T) {
	fake := newFakeDynamo()
	fake.err = errors.New("throttled")
	b := NewDynamoBackend(fake, "nutrition-cache", "default")

	if _, err := b.Load(context.Background()); !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
	if err := b.Save(context.Background(), nil); !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected ErrSaveFailed, got %v", err)
	}
}

func TestDynamoBackend_BadNumber(t *testing.T) {
	fake := newFakeDynamo()
	fake.items["CACHE#default"] = map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CACHE#default"},
		"barcodes": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"1": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"calories": &types.AttributeValueMemberN{Value: "lots"},
			}},
		}},
	}

	_, err := NewDynamoBackend(fake, "nutrition-cache", "default").Load(context.Background())
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}
}
