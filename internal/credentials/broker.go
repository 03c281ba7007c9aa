package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/provisio/provisio/internal/config"
	"github.com/provisio/provisio/internal/models"
)

const (
	// delegationWindow is the requested validity of an assumed-role session.
	delegationWindow = time.Hour
	// safetyMargin is subtracted from a delegated set's expiration before
	// caching so a set is never handed out moments before it dies.
	safetyMargin = 10 * time.Minute

	devUserID    = "dev-user"
	devProjectID = "dev-project"
)

// stsAPI is the slice of the STS client the broker uses.
type stsAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// iamAPI is used only to enrich delegation failures with a role diagnostic.
type iamAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

// Broker resolves credential sets per request and caches delegated ones.
type Broker struct {
	cfg    *config.Config
	logger zerolog.Logger
	cache  *ttlCache
	sts    stsAPI
	iam    iamAPI
	now    func() time.Time
}

// BrokerOption is a functional option for broker construction.
type BrokerOption func(*Broker)

// WithSTSClient overrides the STS client, for tests.
func WithSTSClient(client stsAPI) BrokerOption {
	return func(b *Broker) { b.sts = client }
}

// WithIAMClient overrides the IAM client, for tests.
func WithIAMClient(client iamAPI) BrokerOption {
	return func(b *Broker) { b.iam = client }
}

// WithClock overrides the broker's clock, for tests.
func WithClock(now func() time.Time) BrokerOption {
	return func(b *Broker) {
		b.now = now
		b.cache = newTTLCache(now)
	}
}

// NewBroker builds a broker from service configuration. The STS and IAM
// clients are bound to the direct credential pair when one is configured,
// otherwise to the SDK default chain.
func NewBroker(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...BrokerOption) (*Broker, error) {
	b := &Broker{
		cfg:    cfg,
		logger: logger.With().Str("component", "credentials").Logger(),
		now:    time.Now,
	}
	b.cache = newTTLCache(b.now)
	for _, opt := range opts {
		opt(b)
	}

	if b.sts == nil || b.iam == nil {
		optFns := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(cfg.Region),
		}
		if cfg.HasDirectCredentials() {
			optFns = append(optFns, awsconfig.WithCredentialsProvider(
				awscreds.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if b.sts == nil {
			b.sts = sts.NewFromConfig(awsCfg)
		}
		if b.iam == nil {
			b.iam = iam.NewFromConfig(awsCfg)
		}
	}
	return b, nil
}

// Resolve returns the credential set to use for one request.
//
// Policy: direct pair alone wins; delegation alone requires identifiers in
// production (placeholders in development); with both configured, production
// prefers delegation and development prefers the direct pair.
func (b *Broker) Resolve(ctx context.Context, userID, projectID string) (Set, error) {
	direct := b.cfg.HasDirectCredentials()
	delegated := b.cfg.HasDelegation()

	switch {
	case direct && !delegated:
		return b.directSet(), nil
	case delegated && !direct:
		return b.resolveDelegated(ctx, userID, projectID)
	case direct && delegated:
		if b.cfg.IsProduction() {
			return b.resolveDelegated(ctx, userID, projectID)
		}
		return b.directSet(), nil
	default:
		return Set{}, &models.ConfigurationError{
			Detail: "no credential source configured (set a direct key pair or an assume-role target)",
		}
	}
}

func (b *Broker) directSet() Set {
	return Set{
		AccessKeyID:     b.cfg.AccessKeyID,
		SecretAccessKey: b.cfg.SecretAccessKey,
	}
}

func (b *Broker) resolveDelegated(ctx context.Context, userID, projectID string) (Set, error) {
	if userID == "" || projectID == "" {
		if b.cfg.IsProduction() {
			return Set{}, &models.ConfigurationError{
				Detail: "delegated credentials require userId and projectId in production",
			}
		}
		if userID == "" {
			userID = devUserID
		}
		if projectID == "" {
			projectID = devProjectID
		}
	}

	key := cacheKey{userID: userID, projectID: projectID}
	if set, ok := b.cache.Get(key); ok {
		b.logger.Debug().Str("project", projectID).Msg("using cached delegated credentials")
		return set, nil
	}

	set, err := b.assumeRole(ctx, userID, projectID)
	if err != nil {
		return Set{}, err
	}
	b.cache.Put(key, set, set.Expiration.Add(-safetyMargin))
	return set, nil
}

func (b *Broker) assumeRole(ctx context.Context, userID, projectID string) (Set, error) {
	sessionName := fmt.Sprintf("provisio-%s-%s", projectID, uuid.NewString()[:8])
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(b.cfg.AssumeRoleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(delegationWindow.Seconds())),
		Tags: []ststypes.Tag{
			{Key: aws.String("user"), Value: aws.String(userID)},
			{Key: aws.String("project"), Value: aws.String(projectID)},
			{Key: aws.String("environment"), Value: aws.String(b.cfg.Environment)},
		},
	}
	if b.cfg.AssumeRoleExternal != "" {
		input.ExternalId = aws.String(b.cfg.AssumeRoleExternal)
	}

	out, err := b.sts.AssumeRole(ctx, input)
	if err != nil {
		b.diagnoseRole(ctx)
		return Set{}, &models.DelegationError{RoleARN: b.cfg.AssumeRoleARN, Cause: err}
	}

	creds := out.Credentials
	expiration := b.now().Add(delegationWindow)
	if creds.Expiration != nil {
		expiration = *creds.Expiration
	}
	b.logger.Info().
		Str("project", projectID).
		Time("expires", expiration).
		Msg("assumed delegated role")

	return Set{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Expiration:      expiration,
		Delegated:       true,
	}, nil
}

// diagnoseRole logs whether the delegation target exists at all, so a failed
// exchange can be told apart from a trust-policy denial. Best effort.
func (b *Broker) diagnoseRole(ctx context.Context) {
	name := roleNameFromARN(b.cfg.AssumeRoleARN)
	if name == "" {
		return
	}
	if _, err := b.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)}); err != nil {
		b.logger.Warn().Str("role", name).Err(err).Msg("delegation target role not readable; it may not exist")
		return
	}
	b.logger.Warn().Str("role", name).Msg("delegation target role exists; check its trust policy and external id")
}

func roleNameFromARN(arn string) string {
	idx := strings.LastIndex(arn, "/")
	if idx < 0 || idx == len(arn)-1 {
		return ""
	}
	return arn[idx+1:]
}
