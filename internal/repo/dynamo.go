package repo

import (
	"context"
	"fmt"

	"sharelink/config"
	"sharelink/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// InitDynamo builds a DynamoDB client from the default AWS credential chain.
// DYNAMODB_ENDPOINT points it at a local emulator.
func InitDynamo(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	})
	utils.Log.Info("init dynamodb success",
		zap.String("region", cfg.AWSRegion),
		zap.String("table", cfg.DynamoTable),
	)
	return client, nil
}
