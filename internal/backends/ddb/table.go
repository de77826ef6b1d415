package ddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SSet  = "SET"
	SMac  = "MAC"
	SFlag = "FLAG"

	ttlAttrName = "expires_at"
)

func pkSet(set string) string   { return fmt.Sprintf("%s#%s", SSet, set) }
func skMac(mac string) string   { return fmt.Sprintf("%s#%s", SMac, mac) }
func pkFlag(name string) string { return fmt.Sprintf("%s#%s", SFlag, name) }
func skFlag() string            { return SFlag }

func createTableIfNotExists(client *dynamodb.Client, table string) {
	_, err := client.CreateTable(context.Background(), &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		log.Fatalf("Failed to create table %s: %v", table, err)
	}

	// Best-effort: DynamoDB reaps expired members lazily; reads double-check
	// expires_at regardless, so a failure here only delays physical deletion.
	_, err = client.UpdateTimeToLive(context.Background(), &dynamodb.UpdateTimeToLiveInput{
		TableName: &table,
		TimeToLiveSpecification: &ddbTypes.TimeToLiveSpecification{
			AttributeName: awsString(ttlAttrName),
			Enabled:       awsBool(true),
		},
	})
	if err != nil {
		log.WithError(err).Debugf("could not enable TTL on table %s", table)
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
