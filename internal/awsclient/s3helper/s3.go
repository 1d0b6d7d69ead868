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

package s3helper

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/ddbexport/internal/awsclient"
)

const CSVContentType = "text/csv; charset=utf-8"

// ParseS3URL splits s3://bucket/key into its bucket and key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%q is not an s3:// URL", raw)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%q must name a bucket and an object key", raw)
	}
	return u.Host, key, nil
}

// UploadFile copies a local file to bucketID/objectID. Large files are sent
// as a multipart upload.
func UploadFile(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID, sourceFilename, contentType string, metadata map[string]string) error {
	file, err := os.Open(sourceFilename)
	if err != nil {
		return fmt.Errorf("open %s for upload: %w", sourceFilename, err)
	}
	defer file.Close()

	ctx, span := s3client.Tracer.Start(ctx, "s3helper.UploadFile",
		trace.WithAttributes(
			attribute.String("bucketID", bucketID),
			attribute.String("objectID", objectID),
		),
	)
	defer span.End()

	meta := map[string]string{"writer": "ddbexport"}
	for k, v := range metadata {
		meta[k] = v
	}

	uploader := manager.NewUploader(s3client.Client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucketID),
		Key:         aws.String(objectID),
		Body:        file,
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("upload s3://%s/%s: %w", bucketID, objectID, err)
	}
	return nil
}
