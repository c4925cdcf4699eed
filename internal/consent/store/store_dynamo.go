package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"consentlake/internal/consent/models"
	"consentlake/pkg/platform/sentinel"
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore keeps snapshots in a table keyed by user_id (partition) and
// consent_timestamp (sort).
type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamo constructs a DynamoDB-backed consent store.
func NewDynamo(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

type dynamoItem struct {
	UserID          string `dynamodbav:"user_id"`
	Timestamp       string `dynamodbav:"consent_timestamp"`
	AITraining      bool   `dynamodbav:"consent_ai_training"`
	DataSale        bool   `dynamodbav:"consent_data_sale"`
	Analytics       bool   `dynamodbav:"consent_analytics"`
	Personalization bool   `dynamodbav:"consent_personalization"`
	Research        bool   `dynamodbav:"consent_research"`
	Version         string `dynamodbav:"consent_version"`
	IPAddress       string `dynamodbav:"ip_address,omitempty"`
	UserAgent       string `dynamodbav:"user_agent,omitempty"`
}

func toItem(c *models.UserConsent) dynamoItem {
	return dynamoItem{
		UserID:          c.UserID,
		Timestamp:       formatSortKey(c.Timestamp),
		AITraining:      c.AITraining,
		DataSale:        c.DataSale,
		Analytics:       c.Analytics,
		Personalization: c.Personalization,
		Research:        c.Research,
		Version:         c.Version,
		IPAddress:       c.IPAddress,
		UserAgent:       c.UserAgent,
	}
}

func (it dynamoItem) toModel() (*models.UserConsent, error) {
	ts, err := parseSortKey(it.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse consent_timestamp %q: %w", it.Timestamp, err)
	}
	return &models.UserConsent{
		UserID:          it.UserID,
		AITraining:      it.AITraining,
		DataSale:        it.DataSale,
		Analytics:       it.Analytics,
		Personalization: it.Personalization,
		Research:        it.Research,
		Timestamp:       ts,
		Version:         it.Version,
		IPAddress:       it.IPAddress,
		UserAgent:       it.UserAgent,
	}, nil
}

func (s *DynamoStore) Append(ctx context.Context, consent *models.UserConsent) error {
	if consent == nil || consent.UserID == "" {
		return fmt.Errorf("append consent: %w", sentinel.ErrInvalidInput)
	}
	item, err := attributevalue.MarshalMap(toItem(consent))
	if err != nil {
		return fmt.Errorf("append consent: marshal: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(consent_timestamp)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return fmt.Errorf("append consent: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("append consent: %w", err)
	}
	return nil
}

func (s *DynamoStore) userQuery(userID string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	}
}

func (s *DynamoStore) Latest(ctx context.Context, userID string) (*models.UserConsent, error) {
	in := s.userQuery(userID)
	in.Limit = aws.Int32(1)
	out, err := s.client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("find latest consent: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, sentinel.ErrNotFound
	}
	snaps, err := decodeItems(out.Items)
	if err != nil {
		return nil, fmt.Errorf("find latest consent: %w", err)
	}
	return snaps[0], nil
}

func (s *DynamoStore) History(ctx context.Context, userID string) ([]*models.UserConsent, error) {
	out := []*models.UserConsent{}
	p := dynamodb.NewQueryPaginator(s.client, s.userQuery(userID))
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list consent history: %w", err)
		}
		snaps, err := decodeItems(page.Items)
		if err != nil {
			return nil, fmt.Errorf("list consent history: %w", err)
		}
		out = append(out, snaps...)
	}
	newestFirst(out)
	return out, nil
}

// ListLatest scans the whole table; every page is read before reducing to the
// newest snapshot per user.
func (s *DynamoStore) ListLatest(ctx context.Context) ([]*models.UserConsent, error) {
	var all []*models.UserConsent
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{TableName: aws.String(s.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan consents: %w", err)
		}
		snaps, err := decodeItems(page.Items)
		if err != nil {
			return nil, fmt.Errorf("scan consents: %w", err)
		}
		all = append(all, snaps...)
	}
	return latestPerUser(all), nil
}

func decodeItems(items []map[string]types.AttributeValue) ([]*models.UserConsent, error) {
	var raw []dynamoItem
	if err := attributevalue.UnmarshalListOfMaps(items, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	out := make([]*models.UserConsent, 0, len(raw))
	for _, it := range raw {
		c, err := it.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
