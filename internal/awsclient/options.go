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
	"crypto/tls"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// clientConfig collects the per-call settings shared by every Get* method.
type clientConfig struct {
	RoleARN      string
	Region       string
	Endpoint     string
	PathStyle    bool
	applyConfigs []func(*aws.Config)
}

// Option is a functional option for GetDynamoDB and GetS3.
type Option func(*clientConfig)

func newClientConfig(opts []Option) *clientConfig {
	c := &clientConfig{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithRole sets the IAM Role ARN to assume (empty = no assume).
func WithRole(roleARN string) Option {
	return func(c *clientConfig) {
		c.RoleARN = roleARN
	}
}

// WithRegion overrides the AWS region for this call.
func WithRegion(region string) Option {
	return func(c *clientConfig) {
		c.Region = region
	}
}

// WithEndpoint forces a custom endpoint (eg DynamoDB Local, MinIO).
func WithEndpoint(url string) Option {
	return func(c *clientConfig) {
		c.Endpoint = url
	}
}

// WithPathStyle uses path-style addressing instead of virtual-host. Only
// S3 clients use it.
func WithPathStyle() Option {
	return func(c *clientConfig) {
		c.PathStyle = true
	}
}

// WithInsecureTLS turns off cert verification (for self-signed endpoints).
func WithInsecureTLS() Option {
	return func(c *clientConfig) {
		c.applyConfigs = append(c.applyConfigs, func(cfg *aws.Config) {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			cfg.HTTPClient = &http.Client{Transport: tr}
		})
	}
}
