package ddb

import (
	"context"
	"sort"
	"time"

	"gatekeeper/internal/types"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MemberStore implements ports.MemberStore on a single PK/SK table, one item
// per membership. expires_at==0 means no expiry. DynamoDB's TTL reaping is
// lazy, so every read also checks expires_at itself.
type MemberStore struct {
	table string
	cli   *dynamodb.Client
}

type memberItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	MAC       string `dynamodbav:"mac"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

func NewMemberStore(table string, cli *dynamodb.Client) *MemberStore {
	createTableIfNotExists(cli, table)
	return &MemberStore{table: table, cli: cli}
}

func (s *MemberStore) Add(ctx context.Context, set types.Set, mac string, ttl time.Duration) error {
	item := memberItem{
		PK:  pkSet(string(set)),
		SK:  skMac(mac),
		MAC: mac,
	}
	if ttl > 0 {
		item.ExpiresAt = time.Now().Add(ttl).Unix()
	}
	av, _ := attributevalue.MarshalMap(item)
	_, err := s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      av,
	})
	return err
}

func (s *MemberStore) Remove(ctx context.Context, set types.Set, mac string) error {
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key:       memberKey(set, mac),
	})
	return err
}

func (s *MemberStore) Contains(ctx context.Context, set types.Set, mac string) (bool, error) {
	item, err := s.get(ctx, set, mac)
	if err != nil || item == nil {
		return false, err
	}
	return s.live(*item), nil
}

func (s *MemberStore) TTL(ctx context.Context, set types.Set, mac string) (time.Duration, error) {
	item, err := s.get(ctx, set, mac)
	if err != nil {
		return 0, err
	}
	if item == nil || !s.live(*item) {
		return 0, types.Err(types.ErrNotFound, nil, "%s not in %s", mac, set)
	}
	if item.ExpiresAt == 0 {
		return 0, nil
	}
	return time.Until(time.Unix(item.ExpiresAt, 0)), nil
}

// List enumerates a set, lexicographic by MAC so listing IDs are stable for
// an unchanged set.
func (s *MemberStore) List(ctx context.Context, set types.Set) ([]types.Membership, error) {
	items, err := s.query(ctx, set)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]types.Membership, 0, len(items))
	for _, it := range items {
		if !s.live(it) {
			continue
		}
		m := types.Membership{MAC: it.MAC}
		if it.ExpiresAt > 0 {
			m.Remaining = time.Unix(it.ExpiresAt, 0).Sub(now)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out, nil
}

func (s *MemberStore) Flush(ctx context.Context, set types.Set) error {
	items, err := s.query(ctx, set)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := s.Remove(ctx, set, it.MAC); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemberStore) SetBypass(ctx context.Context, on bool) error {
	key := map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkFlag("bypass")},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skFlag()},
	}
	if on {
		_, err := s.cli.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &s.table,
			Item:      key,
		})
		return err
	}
	_, err := s.cli.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key:       key,
	})
	return err
}

func (s *MemberStore) Bypass(ctx context.Context) (bool, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		ConsistentRead: awsBool(true),
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkFlag("bypass")},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skFlag()},
		},
	})
	if err != nil {
		return false, err
	}
	return out.Item != nil, nil
}

func (s *MemberStore) get(ctx context.Context, set types.Set, mac string) (*memberItem, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		ConsistentRead: awsBool(true),
		Key:            memberKey(set, mac),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}
	var item memberItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *MemberStore) query(ctx context.Context, set types.Set) ([]memberItem, error) {
	var items []memberItem
	var start map[string]ddbTypes.AttributeValue
	for {
		out, err := s.cli.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.table,
			KeyConditionExpression: awsString("PK = :pk"),
			ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
				":pk": &ddbTypes.AttributeValueMemberS{Value: pkSet(string(set))},
			},
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}
		var page []memberItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		items = append(items, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		start = out.LastEvaluatedKey
	}
	return items, nil
}

func (s *MemberStore) live(item memberItem) bool {
	return item.ExpiresAt == 0 || time.Now().Unix() < item.ExpiresAt
}

func memberKey(set types.Set, mac string) map[string]ddbTypes.AttributeValue {
	return map[string]ddbTypes.AttributeValue{
		"PK": &ddbTypes.AttributeValueMemberS{Value: pkSet(string(set))},
		"SK": &ddbTypes.AttributeValueMemberS{Value: skMac(mac)},
	}
}
