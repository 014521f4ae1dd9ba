package rapidpro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

type SecretsManagerApi interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

func NewSecretsManagerApi(ctx context.Context, config *Config) (SecretsManagerApi, error) {
	awsConfig, err := common.LoadAwsConfig(ctx, config.BaseConfig)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(awsConfig), nil
}

// The token from Secrets Manager when a secret ID is configured, the plain token otherwise
func ResolveRapidproToken(ctx context.Context, config *Config, secretsManagerApi SecretsManagerApi) (string, error) {
	if config.RapidproTokenSecretId == "" {
		return config.RapidproToken, nil
	}

	common.LogDebug(config.BaseConfig, "Reading RapidPro token from secret:", config.RapidproTokenSecretId)
	output, err := secretsManagerApi.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(config.RapidproTokenSecretId),
	})
	if err != nil {
		var apiError smithy.APIError
		if errors.As(err, &apiError) && apiError.ErrorCode() == "ResourceNotFoundException" {
			return "", fmt.Errorf("secret '%s' not found", config.RapidproTokenSecretId)
		}
		return "", fmt.Errorf("failed to read secret '%s': %w", config.RapidproTokenSecretId, err)
	}

	if output.SecretString == nil {
		return "", fmt.Errorf("secret '%s' has no string value", config.RapidproTokenSecretId)
	}

	token, err := parseSecretToken(*output.SecretString)
	if err != nil {
		return "", fmt.Errorf("secret '%s': %w", config.RapidproTokenSecretId, err)
	}
	return token, nil
}

// Either the raw token or {"token": "..."}
func parseSecretToken(secretString string) (string, error) {
	secretString = strings.TrimSpace(secretString)
	if !strings.HasPrefix(secretString, "{") {
		if secretString == "" {
			return "", errors.New("empty token")
		}
		return secretString, nil
	}

	var secret struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(secretString), &secret); err != nil {
		return "", err
	}
	if secret.Token == "" {
		return "", errors.New(`missing "token" key`)
	}
	return secret.Token, nil
}
