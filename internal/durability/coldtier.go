// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ColdTier abstracts where CheckpointAged writes a finished Avro OCF
// file, mirroring pkg/archive/parquet's ParquetTarget split between a
// local directory and an S3-compatible object store.
type ColdTier interface {
	WriteFile(name string, data []byte) error
}

// FileColdTier writes checkpoint files to a local directory.
type FileColdTier struct {
	path string
}

func NewFileColdTier(path string) (*FileColdTier, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("durability: create cold tier directory: %w", err)
	}
	return &FileColdTier{path: path}, nil
}

func (ft *FileColdTier) WriteFile(name string, data []byte) error {
	return os.WriteFile(filepath.Join(ft.path, name), data, 0o640)
}

// S3ColdTier writes checkpoint files to an S3-compatible bucket.
type S3ColdTier struct {
	client *s3.Client
	bucket string
}

func NewS3ColdTier(cfg ColdTierConfig) (*S3ColdTier, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("durability: S3 cold tier: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("durability: S3 cold tier: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	client := s3.NewFromConfig(awsCfg, opts)
	return &S3ColdTier{client: client, bucket: cfg.Bucket}, nil
}

func (st *S3ColdTier) WriteFile(name string, data []byte) error {
	_, err := st.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("durability: S3 cold tier: put object %q: %w", name, err)
	}
	return nil
}

// NewColdTier picks FileColdTier or S3ColdTier from cfg, matching the
// "empty bucket means use the directory" convention Config documents.
func NewColdTier(cfg ColdTierConfig) (ColdTier, error) {
	if cfg.Bucket != "" {
		return NewS3ColdTier(cfg)
	}
	return NewFileColdTier(cfg.Dir)
}
