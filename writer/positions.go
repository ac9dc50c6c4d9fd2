package writer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "optionflow/config"
	"optionflow/logger"
)

// memoryFileWriter implements the ParquetFile interface for in-memory writing
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)  { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// writes are append-only, seeking is never exercised
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// SnapshotWriter exports valuation snapshots as parquet objects to S3, one
// object per snapshot.
type SnapshotWriter struct {
	config   *appconfig.Config
	s3Client *s3.Client
	mu       sync.Mutex
	log      *logger.Log
}

// NewSnapshotWriter configures the AWS SDK and validates credentials up
// front, so a misconfigured bucket fails at startup rather than on the first
// export.
func NewSnapshotWriter(cfg *appconfig.Config) (*SnapshotWriter, error) {
	log := logger.GetLogger()
	ctx := context.Background()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Storage.S3.Region),
	}
	if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Storage.S3.AccessKeyID,
				cfg.Storage.S3.SecretAccessKey,
				"",
			),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("snapshot_writer").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Storage.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.S3.Endpoint)
		}
	})

	log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"bucket":   cfg.Storage.S3.Bucket,
		"region":   cfg.Storage.S3.Region,
		"endpoint": cfg.Storage.S3.Endpoint,
	}).Info("snapshot writer initialized")

	return &SnapshotWriter{
		config:   cfg,
		s3Client: s3Client,
		log:      log,
	}, nil
}

// Write serializes the export to parquet and uploads it.
func (w *SnapshotWriter) Write(ctx context.Context, export *ValuationExport) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.log.WithComponent("snapshot_writer").WithFields(logger.Fields{
		"snapshot_id": export.SnapshotID,
		"positions":   len(export.Valuations),
		"operation":   "write_snapshot",
	})

	records := buildRecords(export)
	if len(records) == 0 {
		log.Debug("snapshot has no positions, skipping")
		return nil
	}

	data, err := createParquetFile(records)
	if err != nil {
		log.WithError(err).Error("failed to create parquet file")
		return err
	}

	key := w.generateS3Key(export)
	log = log.WithFields(logger.Fields{"s3_key": key, "file_size": len(data)})

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.config.Storage.S3.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":       "parquet",
			"optionflow-version": w.config.Optionflow.Version,
		},
	}
	if _, err := w.s3Client.PutObject(context.WithoutCancel(ctx), input); err != nil {
		log.WithError(err).
			WithEnv("S3_BUCKET").
			Error("failed to upload snapshot to S3")
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", w.config.Storage.S3.Bucket, err)
	}

	logger.IncrementSnapshotWrites()
	log.Info("snapshot uploaded to S3")
	logger.LogDataFlowEntry(log, "valuation_snapshot", "s3", len(records), "positions")
	return nil
}

func (w *SnapshotWriter) generateS3Key(export *ValuationExport) string {
	ts := export.GeneratedAt.UTC()
	key := filepath.Join(
		w.config.Storage.S3.Prefix,
		fmt.Sprintf("date=%s", ts.Format("2006-01-02")),
		fmt.Sprintf("valuations_%s_%s.parquet", ts.Format("20060102150405"), uuid.New().String()),
	)
	return filepath.ToSlash(key)
}

// createParquetFile renders the records into an in-memory parquet file.
func createParquetFile(records []ValuationRecord) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := parquetwriter.NewParquetWriter(fw, new(ValuationRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}
