// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package awsclient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	mgr, err := NewManager(context.Background(), WithAssumeRoleSessionName("test-session"), WithMaxAttempts(3))
	require.NoError(t, err)
	return mgr
}

func TestNewManager(t *testing.T) {
	mgr := testManager(t)
	assert.Equal(t, "us-west-2", mgr.Region())
	assert.Equal(t, "test-session", mgr.sessionName)
	assert.Equal(t, 3, mgr.maxAttempts)
	assert.Equal(t, 3, mgr.baseCfg.Retryer().MaxAttempts())
}

func TestGetDynamoDBOptions(t *testing.T) {
	mgr := testManager(t)

	c, err := mgr.GetDynamoDB(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", c.Client.Options().Region)
	assert.Nil(t, c.Client.Options().BaseEndpoint)

	c, err = mgr.GetDynamoDB(context.Background(), WithRegion("eu-west-1"), WithEndpoint("http://localhost:8000"))
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", c.Client.Options().Region)
	assert.Equal(t, "http://localhost:8000", aws.ToString(c.Client.Options().BaseEndpoint))
}

func TestGetS3PathStyle(t *testing.T) {
	mgr := testManager(t)
	c, err := mgr.GetS3(context.Background(), WithPathStyle(), WithInsecureTLS())
	require.NoError(t, err)
	assert.True(t, c.Client.Options().UsePathStyle)
}

func TestCredentialsCache(t *testing.T) {
	mgr := testManager(t)

	base := mgr.credentials(roleKey{Region: "us-west-2"})
	assert.Same(t, mgr.baseCfg.Credentials, base)

	role := roleKey{Region: "us-west-2", RoleARN: "arn:aws:iam::123456789012:role/exporter"}
	assumed := mgr.credentials(role)
	_, ok := assumed.(*aws.CredentialsCache)
	assert.True(t, ok, "assumed role credentials should be cached")
	assert.Same(t, assumed, mgr.credentials(role))
	assert.Len(t, mgr.providers, 2)
}
