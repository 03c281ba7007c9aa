// Package credentials resolves and caches the cloud credentials used by both
// the provisioning engine subprocesses and the direct SDK cleanup clients.
package credentials

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
)

// Set is one resolved credential set. Direct sets are long-lived and carry no
// expiration; delegated sets expire and are cached with a safety margin.
type Set struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
	Delegated       bool
}

// Env returns the environment variable assignments injecting this set into a
// subprocess.
func (s Set) Env() []string {
	env := []string{
		"AWS_ACCESS_KEY_ID=" + s.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY=" + s.SecretAccessKey,
	}
	if s.SessionToken != "" {
		env = append(env, "AWS_SESSION_TOKEN="+s.SessionToken)
	}
	return env
}

// AWSConfig builds an SDK config bound to this set and region.
func (s Set) AWSConfig(ctx context.Context, region string) (aws.Config, error) {
	provider := awscreds.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken)
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(provider),
	)
}
