// Package aws provides an AWS SNS/SQS sink for maestro lifecycle events.
package aws

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-aws/sns"
	"github.com/ThreeDotsLabs/watermill-aws/sqs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	amazonsns "github.com/aws/aws-sdk-go-v2/service/sns"
	amazonsqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	smithyendpoints "github.com/aws/smithy-go/endpoints"

	"github.com/drblury/maestro/transport"
)

// SinkName is the name used to register this sink.
const SinkName = "aws"

const (
	localstackAccountID = "000000000000"
	awsAccountIDLength  = 12
)

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// TopicResolverFactory allows overriding the topic resolver creation for testing.
var TopicResolverFactory = sns.NewGenerateArnTopicResolver

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg sns.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return sns.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg sns.SubscriberConfig, sqsCfg sqs.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return sns.NewSubscriber(cfg, sqsCfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(SinkName, Build, transport.AWSCapabilities)
}

// Build creates a new AWS SNS/SQS sink.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	logger.Info("Created AWS config", watermill.LogFields{
		"region":          awsCfg.Region,
		"custom_endpoint": hasCustomEndpoint(awsCfg),
	})

	publisher, err := createPublisher(cfg, logger, awsCfg)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := createSubscriber(cfg, logger, awsCfg)
	if err != nil {
		return transport.Transport{}, err
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this sink.
func Capabilities() transport.Capabilities {
	return transport.AWSCapabilities
}

func loadAWSConfig(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (*aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	region := cfg.GetAWSRegion()
	accessKey := cfg.GetAWSAccessKeyID()
	secretKey := cfg.GetAWSSecretAccessKey()

	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey != "" && secretKey != "" {
		logger.Info("Using static AWS credentials from config", watermill.LogFields{})
		opts = append(opts, awsconfig.WithCredentialsProvider(staticCredentialsProvider(accessKey, secretKey)))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, watermill.LogFields{
			"requested_region": region,
		})
		return nil, err
	}

	// Ensure region is set even if the loader ignores options
	if region != "" {
		awsCfg.Region = region
	}

	return &awsCfg, nil
}

func createPublisher(cfg transport.Config, logger watermill.LoggerAdapter, awsCfg *aws.Config) (message.Publisher, error) {
	accountID, region := resolveAccountAndRegion(cfg, logger, awsCfg.Region)
	logger.Info("Create AWS publisher", watermill.LogFields{
		"accountID": accountID,
		"region":    region,
	})

	topicResolver, err := createTopicResolver(accountID, region, logger)
	if err != nil {
		return nil, err
	}

	publisherConfig := sns.PublisherConfig{
		TopicResolver: topicResolver,
		AWSConfig:     *awsCfg,
		Marshaler:     sns.DefaultMarshalerUnmarshaler{},
	}

	if endpoint, err := awsEndpointURL(cfg); err != nil {
		logger.Error("Failed to parse AWS endpoint", err, watermill.LogFields{"endpoint": cfg.GetAWSEndpoint()})
		return nil, err
	} else if endpoint != nil {
		endpointStr := endpoint.String()
		publisherConfig.OptFns = []func(*amazonsns.Options){
			func(o *amazonsns.Options) {
				o.BaseEndpoint = aws.String(endpointStr)
			},
		}
	}

	return PublisherFactory(publisherConfig, logger)
}

func createSubscriber(cfg transport.Config, logger watermill.LoggerAdapter, awsCfg *aws.Config) (message.Subscriber, error) {
	accountID, region := resolveAccountAndRegion(cfg, logger, awsCfg.Region)
	topicResolver, err := createTopicResolver(accountID, region, logger)
	if err != nil {
		return nil, err
	}

	snsOpts, sqsOpts, err := endpointOverrides(awsCfg)
	if err != nil {
		return nil, err
	}

	subscriberConfig := sns.SubscriberConfig{
		AWSConfig:     *awsCfg,
		OptFns:        snsOpts,
		TopicResolver: topicResolver,
		GenerateSqsQueueName: func(ctx context.Context, snsTopic sns.TopicArn) (string, error) {
			topic, err := sns.ExtractTopicNameFromTopicArn(snsTopic)
			if err != nil {
				return "", err
			}
			return string(topic), nil
		},
	}

	return SubscriberFactory(
		subscriberConfig,
		sqs.SubscriberConfig{
			AWSConfig: *awsCfg,
			OptFns:    sqsOpts,
		},
		logger,
	)
}

func endpointOverrides(awsCfg *aws.Config) ([]func(*amazonsns.Options), []func(*amazonsqs.Options), error) {
	if !hasCustomEndpoint(awsCfg) {
		return nil, nil, nil
	}

	parsedURL, err := url.Parse(*awsCfg.BaseEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse BaseEndpoint: %w", err)
	}

	snsOpts := []func(*amazonsns.Options){
		amazonsns.WithEndpointResolverV2(sns.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{
				URI: *parsedURL,
			},
		}),
	}
	sqsOpts := []func(*amazonsqs.Options){
		amazonsqs.WithEndpointResolverV2(sqs.OverrideEndpointResolver{
			Endpoint: smithyendpoints.Endpoint{
				URI: *parsedURL,
			},
		}),
	}
	return snsOpts, sqsOpts, nil
}

// resolveAccountAndRegion cleans up the configured account ID and falls back
// to the LocalStack default account when the config points at a local endpoint.
func resolveAccountAndRegion(cfg transport.Config, logger watermill.LoggerAdapter, fallbackRegion string) (string, string) {
	accountID := strings.Trim(cfg.GetAWSAccountID(), "\"' ")
	region := cfg.GetAWSRegion()
	if region == "" {
		region = fallbackRegion
	}

	localstack := cfg.GetAWSEndpoint() != ""

	if accountID == "" && localstack {
		accountID = localstackAccountID
		logger.Info("AWS account ID empty; using LocalStack default", watermill.LogFields{"accountID": accountID})
		return accountID, region
	}

	if accountID != "" && len(accountID) != awsAccountIDLength && localstack {
		logger.Info("Invalid AWS account ID; falling back to LocalStack default", watermill.LogFields{"accountID": accountID})
		accountID = localstackAccountID
	}

	return accountID, region
}

func createTopicResolver(accountID, region string, logger watermill.LoggerAdapter) (sns.TopicResolver, error) {
	topicResolver, err := TopicResolverFactory(accountID, region)
	if err != nil {
		logger.Error("Failed to create SNS topic resolver", err, watermill.LogFields{
			"accountID": accountID,
			"region":    region,
		})
		return nil, err
	}
	return topicResolver, nil
}

func awsEndpointURL(cfg transport.Config) (*url.URL, error) {
	if cfg.GetAWSEndpoint() == "" {
		return nil, nil
	}

	parsedURL, err := url.Parse(cfg.GetAWSEndpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to parse AWS endpoint: %w", err)
	}
	return parsedURL, nil
}

func hasCustomEndpoint(cfg *aws.Config) bool {
	return cfg != nil && cfg.BaseEndpoint != nil && *cfg.BaseEndpoint != ""
}

func staticCredentialsProvider(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
		return aws.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		}, nil
	})
}
