package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// LoadFromAWS loads the default AWS configuration and builds Config from the
// process environment and SSM Parameter Store.
func LoadFromAWS(ctx context.Context) (*Config, aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, aws.Config{}, fmt.Errorf("error loading AWS config:\n>>> %w", err)
	}
	cfg, err := Load(ctx, OSEnv, SSMSource{Client: ssm.NewFromConfig(awsCfg)})
	if err != nil {
		return nil, awsCfg, err
	}
	return cfg, awsCfg, nil
}
