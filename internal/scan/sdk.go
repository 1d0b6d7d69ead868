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

package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/ddbexport/internal/constants"
	"github.com/cardinalhq/ddbexport/internal/ddbitem"
	"github.com/cardinalhq/ddbexport/internal/exporterr"
	"github.com/cardinalhq/ddbexport/internal/logctx"
)

// ScanClient is the subset of the DynamoDB client the SDK provider uses.
type ScanClient interface {
	dynamodb.ScanAPIClient
	dynamodb.DescribeTableAPIClient
}

// SDKProvider runs the parallel scan in-process with the DynamoDB SDK. Each
// segment is paged independently; pages are handed to the consumer in the
// order they complete.
type SDKProvider struct {
	Client ScanClient
	// Concurrency bounds how many segments are scanned at once.
	Concurrency int
	// PageLimit sets Scan Limit when positive.
	PageLimit int32
}

var _ Provider = (*SDKProvider)(nil)

func NewSDKProvider(client ScanClient, concurrency int, pageLimit int32) *SDKProvider {
	return &SDKProvider{Client: client, Concurrency: concurrency, PageLimit: pageLimit}
}

func (p *SDKProvider) Name() string {
	return "sdk"
}

func (p *SDKProvider) Preflight(ctx context.Context, req Request) error {
	if p.Client == nil {
		return exporterr.Unavailable("no DynamoDB client configured")
	}
	_, err := p.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(req.Table)})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return exporterr.Unavailable("table %s not found", req.Table)
	}
	return exporterr.Unavailable("describe table %s: %s", req.Table, apiErrorText(err))
}

func (p *SDKProvider) concurrency(segments int) int {
	c := p.Concurrency
	if c <= 0 {
		c = constants.DefaultConcurrency
	}
	return min(c, segments)
}

func (p *SDKProvider) Start(ctx context.Context, req Request) (Stream, error) {
	if p.Client == nil {
		return nil, exporterr.Unavailable("no DynamoDB client configured")
	}
	segments := req.segments()
	workers := p.concurrency(segments)

	scanCtx, cancel := context.WithCancel(ctx)
	s := &sdkStream{
		parent: ctx,
		cancel: cancel,
		pages:  make(chan *Batch, workers),
		done:   make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(scanCtx)
	g.SetLimit(workers)
	go func() {
		defer close(s.done)
		defer close(s.pages)
		for seg := range segments {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				return p.scanSegment(gctx, req, seg, segments, s.pages)
			})
		}
		s.err = g.Wait()
	}()

	logctx.FromContext(ctx).Info("Started in-process parallel scan",
		slog.String("table", req.Table),
		slog.Int("segments", segments),
		slog.Int("workers", workers),
		slog.Bool("filtered", req.Filter != nil))
	return s, nil
}

func (p *SDKProvider) scanSegment(ctx context.Context, req Request, seg, total int, out chan<- *Batch) error {
	input := &dynamodb.ScanInput{
		TableName:     aws.String(req.Table),
		Segment:       aws.Int32(int32(seg)),
		TotalSegments: aws.Int32(int32(total)),
	}
	if req.Filter != nil {
		input.FilterExpression = aws.String(req.Filter.Expression())
		input.ExpressionAttributeValues = req.Filter.AttributeValues()
	}
	if p.PageLimit > 0 {
		input.Limit = aws.Int32(p.PageLimit)
	}

	pages := 0
	pager := dynamodb.NewScanPaginator(p.Client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return &segmentError{segment: seg, err: err}
		}

		items := make([]*ddbitem.Item, len(page.Items))
		for i, attrs := range page.Items {
			items[i] = ddbitem.FromSDK(attrs)
		}
		raw, err := ddbitem.EncodePage(items, int(page.ScannedCount))
		if err != nil {
			return &segmentError{segment: seg, err: fmt.Errorf("encode page: %w", err)}
		}

		batch := &Batch{Raw: raw, Segment: seg, Items: items, Scanned: int(page.ScannedCount)}
		select {
		case out <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		pages++
	}
	logctx.FromContext(ctx).Debug("Segment scan complete", slog.Int("segment", seg), slog.Int("pages", pages))
	return nil
}

type segmentError struct {
	segment int
	err     error
}

func (e *segmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.segment, e.err)
}

func (e *segmentError) Unwrap() error { return e.err }

type sdkStream struct {
	parent context.Context
	cancel context.CancelFunc
	pages  chan *Batch
	done   chan struct{}
	lineNo int

	// err is written by the producer before done is closed.
	err error

	closeOnce sync.Once
}

func (s *sdkStream) Next(ctx context.Context) (*Batch, error) {
	select {
	case b, ok := <-s.pages:
		if !ok {
			return nil, io.EOF
		}
		s.lineNo++
		b.Line = s.lineNo
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *sdkStream) Wait() error {
	<-s.done
	s.cancel()
	err := s.err
	if err == nil {
		return nil
	}
	if ctxErr := s.parent.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", exporterr.ErrCanceled, ctxErr)
	}
	return &exporterr.ScanAbortedError{ExitCode: -1, Stderr: apiErrorText(err), Err: err}
}

func (s *sdkStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for range s.pages {
		}
		<-s.done
	})
	return nil
}

// apiErrorText renders an AWS API failure the way the CLI prints it.
func apiErrorText(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		text := fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		var segErr *segmentError
		if errors.As(err, &segErr) {
			text = fmt.Sprintf("segment %d: %s", segErr.segment, text)
		}
		return text
	}
	return err.Error()
}
