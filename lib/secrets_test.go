package rapidpro

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManagerApi struct {
	secretString *string
	err          error
	secretIds    []string
}

func (api *fakeSecretsManagerApi) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	api.secretIds = append(api.secretIds, aws.ToString(params.SecretId))
	if api.err != nil {
		return nil, api.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: api.secretString}, nil
}

func TestResolveRapidproToken(t *testing.T) {
	t.Run("Uses the configured token without a secret ID", func(t *testing.T) {
		api := &fakeSecretsManagerApi{}

		token, err := ResolveRapidproToken(context.Background(), testConfig(), api)

		require.NoError(t, err)
		assert.Equal(t, "secret-token", token)
		assert.Empty(t, api.secretIds)
	})

	t.Run("Reads a raw token from the secret", func(t *testing.T) {
		config := testConfig()
		config.RapidproTokenSecretId = "prod/rapidpro"
		api := &fakeSecretsManagerApi{secretString: aws.String("  raw-token\n")}

		token, err := ResolveRapidproToken(context.Background(), config, api)

		require.NoError(t, err)
		assert.Equal(t, "raw-token", token)
		assert.Equal(t, []string{"prod/rapidpro"}, api.secretIds)
	})

	t.Run("Reads the token key of a JSON secret", func(t *testing.T) {
		config := testConfig()
		config.RapidproTokenSecretId = "prod/rapidpro"
		api := &fakeSecretsManagerApi{secretString: aws.String(`{"token": "json-token", "url": "https://rapidpro.example.org"}`)}

		token, err := ResolveRapidproToken(context.Background(), config, api)

		require.NoError(t, err)
		assert.Equal(t, "json-token", token)
	})

	t.Run("Reports a missing secret", func(t *testing.T) {
		config := testConfig()
		config.RapidproTokenSecretId = "prod/missing"
		api := &fakeSecretsManagerApi{err: &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"}}

		_, err := ResolveRapidproToken(context.Background(), config, api)

		require.EqualError(t, err, "secret 'prod/missing' not found")
	})

	t.Run("Wraps other errors", func(t *testing.T) {
		config := testConfig()
		config.RapidproTokenSecretId = "prod/rapidpro"
		apiErr := errors.New("timeout")
		api := &fakeSecretsManagerApi{err: apiErr}

		_, err := ResolveRapidproToken(context.Background(), config, api)

		require.ErrorIs(t, err, apiErr)
	})

	t.Run("Rejects a secret without a string value", func(t *testing.T) {
		config := testConfig()
		config.RapidproTokenSecretId = "prod/rapidpro"

		_, err := ResolveRapidproToken(context.Background(), config, &fakeSecretsManagerApi{})

		require.Error(t, err)
	})
}

func TestParseSecretToken(t *testing.T) {
	_, err := parseSecretToken(`{"password": "x"}`)
	assert.EqualError(t, err, `missing "token" key`)

	_, err = parseSecretToken("   ")
	assert.EqualError(t, err, "empty token")

	_, err = parseSecretToken(`{"token": `)
	assert.Error(t, err)
}
