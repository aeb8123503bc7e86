package repo

import (
	"context"
	"errors"
	"fmt"

	"sharelink/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoLinkStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoLinkStore keeps links in a table keyed by shortCode with a secondary
// index on username.
type DynamoLinkStore struct {
	client     DynamoAPI
	table      string
	ownerIndex string
}

func NewDynamoLinkStore(client DynamoAPI, table, ownerIndex string) *DynamoLinkStore {
	return &DynamoLinkStore{client: client, table: table, ownerIndex: ownerIndex}
}

func (s *DynamoLinkStore) key(shortCode string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"shortCode": &types.AttributeValueMemberS{Value: shortCode},
	}
}

// Create writes the item only if no item with the same shortCode exists.
func (s *DynamoLinkStore) Create(ctx context.Context, link *model.ShareLink) error {
	item, err := attributevalue.MarshalMap(link)
	if err != nil {
		return fmt.Errorf("marshal share link: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(shortCode)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrLinkExists
	}
	return err
}

func (s *DynamoLinkStore) Get(ctx context.Context, shortCode string) (*model.ShareLink, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(shortCode),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrLinkNotFound
	}
	var link model.ShareLink
	if err := attributevalue.UnmarshalMap(out.Item, &link); err != nil {
		return nil, fmt.Errorf("unmarshal share link: %w", err)
	}
	return &link, nil
}

// ListByOwner queries the owner index, following pagination.
func (s *DynamoLinkStore) ListByOwner(ctx context.Context, username string) ([]model.ShareLink, error) {
	links := make([]model.ShareLink, 0)
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			IndexName:              aws.String(s.ownerIndex),
			KeyConditionExpression: aws.String("username = :username"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":username": &types.AttributeValueMemberS{Value: username},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []model.ShareLink
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal share links: %w", err)
		}
		links = append(links, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return links, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func (s *DynamoLinkStore) Delete(ctx context.Context, shortCode string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(shortCode),
		ConditionExpression: aws.String("attribute_exists(shortCode)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrLinkNotFound
	}
	return err
}

// IncrementDownloadCount uses an ADD update so concurrent increments are never lost.
func (s *DynamoLinkStore) IncrementDownloadCount(ctx context.Context, shortCode string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 s.key(shortCode),
		UpdateExpression:    aws.String("ADD downloadCount :one"),
		ConditionExpression: aws.String("attribute_exists(shortCode)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrLinkNotFound
	}
	return err
}
