// Package repository persists the turn audit trail: one record per completed
// triage turn plus a conversation meta record, both TTL'd. The dispatcher
// only ever writes here; nothing in the core reads turns back (turns are
// stateless by design).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"trakii-bot/internal/domain"
)

const (
	skPrefixTurn   = "TURN#"
	skMeta         = "META#"
	statusComplete = "complete"
	ttlDuration    = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Writer defines the audit operations consumed by the dispatch engine.
type Writer interface {
	SaveCompletedTurn(ctx context.Context, conversationID, userID, message, label, reply string) error
}

// Client wraps a DynamoDB table for the turn audit trail.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// turnSK returns the sort key for a turn using the current UTC timestamp.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(time.RFC3339Nano)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// SaveCompletedTurn writes the turn record and the conversation meta upsert
// in one transaction.
func (c *Client) SaveCompletedTurn(ctx context.Context, conversationID, userID, message, label, reply string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: SaveCompletedTurn: conversation id is required")
	}

	rec := NewTurnRecord(conversationID, userID, message, label, reply)
	meta := NewConversationMeta(conversationID, userID)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(rec),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveCompletedTurn: %w", err)
	}
	return nil
}

// NewTurnRecord constructs a TurnRecord with PK/SK/TTL set from the
// conversation id and current time.
func NewTurnRecord(conversationID, userID, message, label, reply string) domain.TurnRecord {
	now := time.Now().UTC()
	return domain.TurnRecord{
		PK:             convPK(conversationID),
		SK:             turnSK(now),
		ConversationID: conversationID,
		UserID:         userID,
		Message:        message,
		Label:          label,
		Reply:          reply,
		Status:         statusComplete,
		TTL:            ttlValue(),
	}
}

// NewConversationMeta constructs a ConversationMeta record.
func NewConversationMeta(conversationID, userID string) domain.ConversationMeta {
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		UserID:         userID,
		LastActivity:   time.Now().UTC().Format(time.RFC3339),
		TTL:            ttlValue(),
	}
}

func turnItem(rec domain.TurnRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: rec.PK},
		"SK":             &types.AttributeValueMemberS{Value: rec.SK},
		"conversationId": &types.AttributeValueMemberS{Value: rec.ConversationID},
		"userId":         &types.AttributeValueMemberS{Value: rec.UserID},
		"message":        &types.AttributeValueMemberS{Value: rec.Message},
		"label":          &types.AttributeValueMemberS{Value: rec.Label},
		"reply":          &types.AttributeValueMemberS{Value: rec.Reply},
		"status":         &types.AttributeValueMemberS{Value: rec.Status},
		"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.TTL)},
	}
}

func metaItem(meta domain.ConversationMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: meta.PK},
		"SK":             &types.AttributeValueMemberS{Value: meta.SK},
		"conversationId": &types.AttributeValueMemberS{Value: meta.ConversationID},
		"userId":         &types.AttributeValueMemberS{Value: meta.UserID},
		"lastActivity":   &types.AttributeValueMemberS{Value: meta.LastActivity},
		"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", meta.TTL)},
	}
}
