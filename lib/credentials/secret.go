package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type SecretConfig struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

func DefaultSecretConfig() SecretConfig {
	return SecretConfig{
		Name:   "comics.org",
		Region: "us-west-2",
	}
}

// SecretsManagerAPI is the part of *secretsmanager.Client that is used.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretProvider reads a JSON object {"username": ..., "password": ...}
// stored as the string value of SecretId.
type SecretProvider struct {
	Client   SecretsManagerAPI
	SecretId string
}

func NewSecretProvider(ctx context.Context, cfg SecretConfig) (SecretProvider, error) {
	awscfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return SecretProvider{}, fmt.Errorf("%w: load aws config: %w", ErrCredentials, err)
	}
	return SecretProvider{
		Client:   secretsmanager.NewFromConfig(awscfg),
		SecretId: cfg.Name,
	}, nil
}

type secretPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (p SecretProvider) Resolve(ctx context.Context) (Credentials, error) {
	out, err := p.Client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.SecretId),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: get secret %s: %w", ErrCredentials, p.SecretId, err)
	}
	if out.SecretString == nil {
		return Credentials{}, fmt.Errorf("%w: secret %s has no string value", ErrCredentials, p.SecretId)
	}

	var payload secretPayload
	err = json.Unmarshal([]byte(aws.ToString(out.SecretString)), &payload)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: secret %s is not a json object: %w", ErrCredentials, p.SecretId, err)
	}

	creds := Credentials{Username: payload.Username, Password: payload.Password}
	if !creds.valid() {
		return Credentials{}, fmt.Errorf("%w: secret %s is missing username or password", ErrCredentials, p.SecretId)
	}
	return creds, nil
}
