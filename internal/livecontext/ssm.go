package livecontext

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// NewSSMClient creates an SSM client from the default AWS credential chain.
func NewSSMClient(ctx context.Context, region string) (*ssm.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

// SSMInjector keeps each environment's key in a SecureString parameter {prefix}/{env}.
type SSMInjector struct {
	client   SSMAPI
	prefix   string
	kmsKeyID string
}

// NewSSMInjector creates an SSMInjector. An empty kmsKeyID uses the account default key.
func NewSSMInjector(client SSMAPI, prefix, kmsKeyID string) *SSMInjector {
	return &SSMInjector{client: client, prefix: prefix, kmsKeyID: kmsKeyID}
}

func (s *SSMInjector) parameterName(env string) string {
	return path.Join("/", s.prefix, env)
}

func (s *SSMInjector) Describe(env string) string {
	return "ssm:" + s.parameterName(env)
}

func (s *SSMInjector) Current(ctx context.Context, env string) ([]byte, bool, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.parameterName(env)),
		WithDecryption: aws.Bool(true),
	})
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("SSM GetParameter %s: %w", s.parameterName(env), err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return nil, false, nil
	}
	return []byte(*out.Parameter.Value), true, nil
}

func (s *SSMInjector) Inject(ctx context.Context, env string, key []byte) error {
	in := &ssm.PutParameterInput{
		Name:        aws.String(s.parameterName(env)),
		Value:       aws.String(string(key)),
		Type:        types.ParameterTypeSecureString,
		Overwrite:   aws.Bool(true),
		Description: aws.String("age private key for environment " + env),
	}
	if s.kmsKeyID != "" {
		in.KeyId = aws.String(s.kmsKeyID)
	}
	if _, err := s.client.PutParameter(ctx, in); err != nil {
		return fmt.Errorf("SSM PutParameter %s: %w", s.parameterName(env), err)
	}
	return nil
}
