package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoBackend.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoBackend stores the whole cache document as a single DynamoDB item
// keyed by PK = "CACHE#<name>", with the records under a "barcodes" map.
// DynamoDB items are capped at 400 KB, which bounds the cache to a few
// thousand products.
type DynamoBackend struct {
	client    DynamoAPI
	tableName string
	name      string
}

// NewDynamoBackend returns a backend writing to tableName.
func NewDynamoBackend(client DynamoAPI, tableName, name string) *DynamoBackend {
	return &DynamoBackend{client: client, tableName: tableName, name: name}
}

func (d *DynamoBackend) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "CACHE#" + d.name},
	}
}

// Load fetches the cache item. A missing item is created empty first.
func (d *DynamoBackend) Load(ctx context.Context) (map[string]nutrition.Record, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &d.tableName,
		Key:            d.key(),
		ConsistentRead: ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: GetItem: %w", ErrLoadFailed, err)
	}

	if out.Item == nil {
		empty := make(map[string]nutrition.Record)
		if err := d.Save(ctx, empty); err != nil {
			return nil, err
		}
		return empty, nil
	}

	records, err := unmarshalBarcodes(out.Item)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return records, nil
}

// Save replaces the cache item with records.
func (d *DynamoBackend) Save(ctx context.Context, records map[string]nutrition.Record) error {
	barcodes := make(map[string]types.AttributeValue, len(records))
	for code, rec := range records {
		barcodes[code] = marshalRecord(rec)
	}

	item := d.key()
	item["barcodes"] = &types.AttributeValueMemberM{Value: barcodes}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)}

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &d.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("%w: PutItem: %w", ErrSaveFailed, err)
	}
	return nil
}

func marshalRecord(rec nutrition.Record) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		"name":     &types.AttributeValueMemberS{Value: rec.Name},
		"calories": number(rec.Calories),
		"fat":      number(rec.Fat),
		"carbs":    number(rec.Carbs),
		"protein":  number(rec.Protein),
		"sugar":    number(rec.Sugar),
		"fiber":    number(rec.Fiber),
	}}
}

func number(v float64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
}

// unmarshalBarcodes extracts the barcodes map from a DynamoDB item.
func unmarshalBarcodes(item map[string]types.AttributeValue) (map[string]nutrition.Record, error) {
	attr, ok := item["barcodes"]
	if !ok {
		return make(map[string]nutrition.Record), nil
	}
	m, ok := attr.(*types.AttributeValueMemberM)
	if !ok {
		return nil, fmt.Errorf("barcodes attribute is not a map")
	}

	records := make(map[string]nutrition.Record, len(m.Value))
	for code, v := range m.Value {
		fields, ok := v.(*types.AttributeValueMemberM)
		if !ok {
			return nil, fmt.Errorf("record %s is not a map", code)
		}
		rec, err := unmarshalRecord(fields.Value)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", code, err)
		}
		records[code] = rec
	}
	return records, nil
}

func unmarshalRecord(f map[string]types.AttributeValue) (nutrition.Record, error) {
	var rec nutrition.Record
	if s, ok := f["name"].(*types.AttributeValueMemberS); ok {
		rec.Name = s.Value
	}

	targets := map[string]*float64{
		"calories": &rec.Calories,
		"fat":      &rec.Fat,
		"carbs":    &rec.Carbs,
		"protein":  &rec.Protein,
		"sugar":    &rec.Sugar,
		"fiber":    &rec.Fiber,
	}
	for field, dst := range targets {
		n, ok := f[field].(*types.AttributeValueMemberN)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nutrition.Record{}, fmt.Errorf("%s: %w", field, err)
		}
		*dst = v
	}
	return rec, nil
}

func ptr[T any](v T) *T {
	return &v
}
