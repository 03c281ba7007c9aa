// Package cleanup makes stateful cloud resources safely deletable before the
// provisioning engine runs destroy. Emptying buckets and releasing function
// event-source mappings up front converts the dominant destroy failures
// (non-empty buckets, dangling triggers) into a clean single pass.
package cleanup

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ObjectStoreClient is the object-storage capability the bucket strategy needs.
type ObjectStoreClient interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// FunctionClient is the serverless-function capability the trigger strategy needs.
type FunctionClient interface {
	ListEventSourceMappings(ctx context.Context, params *lambda.ListEventSourceMappingsInput, optFns ...func(*lambda.Options)) (*lambda.ListEventSourceMappingsOutput, error)
	DeleteEventSourceMapping(ctx context.Context, params *lambda.DeleteEventSourceMappingInput, optFns ...func(*lambda.Options)) (*lambda.DeleteEventSourceMappingOutput, error)
}

// GatewayV1Client probes REST API gateways.
type GatewayV1Client interface {
	GetRestApi(ctx context.Context, params *apigateway.GetRestApiInput, optFns ...func(*apigateway.Options)) (*apigateway.GetRestApiOutput, error)
}

// GatewayV2Client probes HTTP API gateways.
type GatewayV2Client interface {
	GetApi(ctx context.Context, params *apigatewayv2.GetApiInput, optFns ...func(*apigatewayv2.Options)) (*apigatewayv2.GetApiOutput, error)
}

// Clients bundles the capability clients the cleanup engine drives.
type Clients struct {
	ObjectStore ObjectStoreClient
	Functions   FunctionClient
	GatewayV1   GatewayV1Client
	GatewayV2   GatewayV2Client
}

// NewAWSClients builds SDK-backed capability clients from an AWS config.
func NewAWSClients(cfg aws.Config) *Clients {
	return &Clients{
		ObjectStore: s3.NewFromConfig(cfg),
		Functions:   lambda.NewFromConfig(cfg),
		GatewayV1:   apigateway.NewFromConfig(cfg),
		GatewayV2:   apigatewayv2.NewFromConfig(cfg),
	}
}

// isNotFound reports whether an SDK error means the resource is already gone.
// Already-gone is success for every cleanup step.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchBucket", "NotFound", "NotFoundException", "ResourceNotFoundException":
		return true
	}
	return false
}
