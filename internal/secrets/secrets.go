package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManager retrieves secrets by name.
type SecretsManager interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvSecretsManager reads secrets from environment variables.
type EnvSecretsManager struct{}

func (s *EnvSecretsManager) GetSecret(_ context.Context, name string) (string, error) {
	secret := os.Getenv(name)
	if secret == "" {
		return "", fmt.Errorf("secret %s not found", name)
	}
	return secret, nil
}

// SecretValueAPI is the slice of the Secrets Manager client used here.
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManager reads secrets from AWS Secrets Manager. RDS-managed
// secrets are JSON documents; their "password" field is returned.
type AWSSecretsManager struct {
	Client SecretValueAPI
}

func NewAWSSecretsManager(cfg aws.Config) *AWSSecretsManager {
	return &AWSSecretsManager{Client: secretsmanager.NewFromConfig(cfg)}
}

func (s *AWSSecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	out, err := s.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}
	value := aws.ToString(out.SecretString)
	if value == "" {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	var doc struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(value), &doc); err == nil && doc.Password != "" {
		return doc.Password, nil
	}
	return value, nil
}
