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
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxAttempts = 10

// Manager hands out service clients that share one base AWS config and a
// cache of assumed-role credentials.
type Manager struct {
	baseCfg     aws.Config
	stsClient   *sts.Client
	sessionName string
	maxAttempts int

	sync.RWMutex
	providers map[roleKey]aws.CredentialsProvider
	tracer    trace.Tracer
}

type roleKey struct {
	Region  string
	RoleARN string
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(mgr *Manager) {
		mgr.sessionName = name
	}
}

// WithMaxAttempts sets how many times a throttled or failed request is tried.
func WithMaxAttempts(n int) ManagerOption {
	return func(mgr *Manager) {
		if n > 0 {
			mgr.maxAttempts = n
		}
	}
}

// NewManager loads the default AWS config chain and creates one STS client.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	mgr := &Manager{
		sessionName: "ddbexport",
		maxAttempts: defaultMaxAttempts,
		providers:   make(map[roleKey]aws.CredentialsProvider),
		tracer:      otel.Tracer("github.com/cardinalhq/ddbexport/internal/awsclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = mgr.maxAttempts
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	otelaws.AppendMiddlewares(&cfg.APIOptions)

	mgr.baseCfg = cfg
	mgr.stsClient = sts.NewFromConfig(cfg)
	return mgr, nil
}

// Region is the region from the default config chain.
func (m *Manager) Region() string {
	return m.baseCfg.Region
}

// credentials returns a cached provider for the region and role, assuming
// the role through STS when one is set.
func (m *Manager) credentials(key roleKey) aws.CredentialsProvider {
	m.RLock()
	provider, ok := m.providers[key]
	m.RUnlock()
	if ok {
		return provider
	}

	m.Lock()
	defer m.Unlock()
	if provider, ok = m.providers[key]; ok {
		return provider
	}
	if key.RoleARN == "" {
		provider = m.baseCfg.Credentials
	} else {
		p := stscreds.NewAssumeRoleProvider(m.stsClient, key.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = m.sessionName
		})
		provider = aws.NewCredentialsCache(p)
	}
	m.providers[key] = provider
	return provider
}

// configFor copies the base config with the region, credentials and any
// config-level options from c applied.
func (m *Manager) configFor(c *clientConfig) aws.Config {
	if c.Region == "" {
		c.Region = m.baseCfg.Region
	}
	cfg := m.baseCfg.Copy()
	cfg.Region = c.Region
	cfg.Credentials = m.credentials(roleKey{Region: c.Region, RoleARN: c.RoleARN})
	for _, fn := range c.applyConfigs {
		fn(&cfg)
	}
	return cfg
}
