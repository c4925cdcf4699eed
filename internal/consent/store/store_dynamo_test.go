package store

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentlake/pkg/platform/sentinel"
)

// fakeDynamo understands the single-key query and the paginated scan the
// store issues.
type fakeDynamo struct {
	mu       sync.Mutex
	items    []map[string]types.AttributeValue
	pageSize int
	scans    int
}

func attrS(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if attrS(it, "user_id") == attrS(in.Item, "user_id") &&
			attrS(it, "consent_timestamp") == attrS(in.Item, "consent_timestamp") {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := in.ExpressionAttributeValues[":u"].(*types.AttributeValueMemberS).Value
	var out []map[string]types.AttributeValue
	for _, it := range f.items {
		if attrS(it, "user_id") == user {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b map[string]types.AttributeValue) int {
		x, y := attrS(a, "consent_timestamp"), attrS(b, "consent_timestamp")
		if in.ScanIndexForward != nil && !*in.ScanIndexForward {
			x, y = y, x
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	})
	if in.Limit != nil && int(*in.Limit) < len(out) {
		out = out[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	start := 0
	if v, ok := in.ExclusiveStartKey["offset"].(*types.AttributeValueMemberN); ok {
		start, _ = strconv.Atoi(v.Value)
	}
	end := min(start+f.pageSize, len(f.items))
	out := &dynamodb.ScanOutput{Items: f.items[start:end]}
	if end < len(f.items) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"offset": &types.AttributeValueMemberN{Value: strconv.Itoa(end)},
		}
	}
	return out, nil
}

func TestDynamoStore(t *testing.T) {
	runStoreContract(t, NewDynamo(&fakeDynamo{pageSize: 2}, "user-consent"))
}

func TestDynamoStore_ScanReadsEveryPage(t *testing.T) {
	ctx := context.Background()
	fake := &fakeDynamo{pageSize: 2}
	s := NewDynamo(fake, "user-consent")

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, s.Append(ctx, snapshot("user-"+strconv.Itoa(i), base, true, false)))
	}

	latest, err := s.ListLatest(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, 5)
	assert.Equal(t, 3, fake.scans)
}

func TestDynamoStore_DuplicateTimestampConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewDynamo(&fakeDynamo{pageSize: 10}, "user-consent")
	at := time.Now()

	require.NoError(t, s.Append(ctx, snapshot("u1", at, true, false)))
	err := s.Append(ctx, snapshot("u1", at, false, false))
	require.ErrorIs(t, err, sentinel.ErrConflict)
}
