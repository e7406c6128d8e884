// Package storage keeps immutable snapshots of issued invoices in S3-compatible
// object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
	"github.com/netbill/backend/internal/infrastructure/config"
)

// ObjectClient is the subset of the S3 API the archive uses.
type ObjectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3InvoiceArchive writes one JSON document per issued invoice.
type S3InvoiceArchive struct {
	client ObjectClient
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3InvoiceArchive builds an S3 client from cfg. Static credentials are
// used when both keys are set; otherwise the default AWS chain applies.
func NewS3InvoiceArchive(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3InvoiceArchive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint))
		}
	})
	return NewS3InvoiceArchiveWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewS3InvoiceArchiveWithClient wires an existing client.
func NewS3InvoiceArchiveWithClient(client ObjectClient, bucket, prefix string, logger *zap.Logger) *S3InvoiceArchive {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3InvoiceArchive{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

// EnsureBucket creates the bucket when it is missing.
func (a *S3InvoiceArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}

	a.logger.Info("creating invoice archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", a.bucket, err)
	}
	return nil
}

// Key returns the object key for inv: <prefix>YYYY/MM/<number>.json, dated
// by the issue date in UTC.
func (a *S3InvoiceArchive) Key(inv *invoicing.Invoice) string {
	issued := inv.IssueDate.UTC()
	name := inv.Number
	if name == "" {
		name = inv.ID.String()
	}
	return fmt.Sprintf("%s%04d/%02d/%s.json", a.prefix, issued.Year(), int(issued.Month()), name)
}

// Store uploads the snapshot and returns its s3:// location.
func (a *S3InvoiceArchive) Store(ctx context.Context, inv *invoicing.Invoice) (string, error) {
	body, err := json.Marshal(newSnapshot(inv))
	if err != nil {
		return "", fmt.Errorf("encode invoice %s: %w", inv.ID, err)
	}
	key := a.Key(inv)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"invoice-id": inv.ID.String(),
			"version":    fmt.Sprint(inv.Version),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive invoice %s: %w", inv.Number, err)
	}
	location := "s3://" + a.bucket + "/" + key
	a.logger.Debug("invoice archived", zap.String("invoice", inv.Number), zap.String("location", location))
	return location, nil
}

var _ invoicing.Archive = (*S3InvoiceArchive)(nil)

// NopArchive accepts every invoice without storing it. It is used when the
// archive is disabled.
type NopArchive struct{}

func (NopArchive) Store(context.Context, *invoicing.Invoice) (string, error) { return "", nil }

var _ invoicing.Archive = NopArchive{}

type snapshot struct {
	ID             string               `json:"id"`
	Number         string               `json:"number"`
	UserID         string               `json:"user_id"`
	Currency       string               `json:"currency"`
	Status         string               `json:"status"`
	IssueDate      time.Time            `json:"issue_date"`
	DueDate        time.Time            `json:"due_date"`
	Items          []snapshotItem       `json:"items"`
	TaxRules       []invoicing.TaxRule  `json:"tax_rules"`
	Discounts      []invoicing.Discount `json:"discounts"`
	Subtotal       valueobject.Money    `json:"subtotal"`
	TaxAmount      valueobject.Money    `json:"tax_amount"`
	DiscountAmount valueobject.Money    `json:"discount_amount"`
	Total          valueobject.Money    `json:"total"`
	Version        int                  `json:"version"`
}

type snapshotItem struct {
	Description string            `json:"description"`
	Quantity    string            `json:"quantity"`
	UnitPrice   valueobject.Money `json:"unit_price"`
	Total       valueobject.Money `json:"total"`
	PeriodStart *time.Time        `json:"period_start,omitempty"`
	PeriodEnd   *time.Time        `json:"period_end,omitempty"`
}

func newSnapshot(inv *invoicing.Invoice) snapshot {
	items := make([]snapshotItem, 0, len(inv.Items))
	for _, it := range inv.Items {
		si := snapshotItem{
			Description: it.Description,
			Quantity:    it.Quantity.String(),
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		}
		if !it.PeriodStart.IsZero() {
			start, end := it.PeriodStart.UTC(), it.PeriodEnd.UTC()
			si.PeriodStart, si.PeriodEnd = &start, &end
		}
		items = append(items, si)
	}
	return snapshot{
		ID:             inv.ID.String(),
		Number:         inv.Number,
		UserID:         inv.UserID.String(),
		Currency:       string(inv.Currency),
		Status:         string(inv.Status),
		IssueDate:      inv.IssueDate.UTC(),
		DueDate:        inv.DueDate.UTC(),
		Items:          items,
		TaxRules:       inv.TaxRules,
		Discounts:      inv.Discounts,
		Subtotal:       inv.Subtotal,
		TaxAmount:      inv.TaxAmount,
		DiscountAmount: inv.DiscountAmount,
		Total:          inv.Total,
		Version:        inv.Version,
	}
}
