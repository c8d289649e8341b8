// Command cleanup is the daily scheduled job that deletes push tokens
// unused for 90+ days and reports the count to CloudWatch.
package main

import (
	"context"
	"log"
	"os"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/suhachi/mystorestory-orders/internal/awsx"
	"github.com/suhachi/mystorestory-orders/internal/config"
	"github.com/suhachi/mystorestory-orders/internal/notify"
)

const inactiveAfter = 90 * 24 * time.Hour

func main() {
	clients, err := awsx.NewClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	cfg := config.FromEnv()
	tokens := notify.NewTokenStore(clients.DynamoDB, cfg.TokensTable)

	job := func(ctx context.Context, ev events.CloudWatchEvent) error {
		cutoff := time.Now().Add(-inactiveAfter)
		deleted, err := tokens.DeleteInactive(ctx, cutoff)
		if err != nil {
			return err
		}
		log.Printf("[cleanup] deleted %d inactive push tokens (cutoff %s)", deleted, cutoff.Format(time.RFC3339))

		_, err = clients.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace: sdkaws.String("OrderLifecycle/Ops"),
			MetricData: []cwtypes.MetricDatum{
				{
					MetricName: sdkaws.String("InactiveTokensDeleted"),
					Value:      sdkaws.Float64(float64(deleted)),
					Timestamp:  sdkaws.Time(time.Now()),
				},
			},
		})
		if err != nil {
			log.Printf("[cleanup] metric publish failed: %v", err)
		}
		return nil
	}

	if os.Getenv("RUN_LOCAL") == "true" {
		if err := job(context.Background(), events.CloudWatchEvent{}); err != nil {
			log.Fatalf("local cleanup error: %v", err)
		}
		return
	}

	lambda.Start(job)
}
