package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/netbill/backend/internal/domain/invoicing"
	"github.com/netbill/backend/internal/domain/shared/valueobject"
	"github.com/netbill/backend/internal/infrastructure/config"
)

type fakeObjectClient struct {
	puts       []*s3.PutObjectInput
	bodies     [][]byte
	putErr     error
	headErr    error
	createErr  error
	createdFor []string
}

func (f *fakeObjectClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectClient) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeObjectClient) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdFor = append(f.createdFor, aws.ToString(in.Bucket))
	return &s3.CreateBucketOutput{}, nil
}

func issuedInvoice(t *testing.T) *invoicing.Invoice {
	t.Helper()
	issued := time.Date(2026, 3, 31, 23, 30, 0, 0, time.UTC)
	b := invoicing.NewBuilderWithClock(func() time.Time { return issued })
	inv, err := b.Build(invoicing.BuildInput{
		UserID: uuid.New(),
		Items: []invoicing.InvoiceItemInput{{
			Description: "Monthly access",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   valueobject.MustParseMoney("30.00", valueobject.CNY),
			PeriodStart: issued.AddDate(0, -1, 0),
			PeriodEnd:   issued,
		}},
		TaxRules: []invoicing.TaxRule{{Name: "VAT", Kind: invoicing.AdjustmentPercentage, Rate: decimal.RequireFromString("0.06")}},
		DueDate:  issued.AddDate(0, 0, 15),
	})
	require.NoError(t, err)
	require.NoError(t, inv.AssignNumber("INV-20260331-0007"))
	return inv
}

func TestS3InvoiceArchive_Store(t *testing.T) {
	client := &fakeObjectClient{}
	archive := NewS3InvoiceArchiveWithClient(client, "billing-archive", "invoices", zaptest.NewLogger(t))
	inv := issuedInvoice(t)

	loc, err := archive.Store(context.Background(), inv)
	require.NoError(t, err)
	assert.Equal(t, "s3://billing-archive/invoices/2026/03/INV-20260331-0007.json", loc)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "billing-archive", aws.ToString(put.Bucket))
	assert.Equal(t, "application/json", aws.ToString(put.ContentType))
	assert.Equal(t, inv.ID.String(), put.Metadata["invoice-id"])

	var doc struct {
		Number string `json:"number"`
		Total  struct {
			MinorUnits int64 `json:"minor_units"`
		} `json:"total"`
		Items []struct {
			Description string `json:"description"`
			Quantity    string `json:"quantity"`
			PeriodStart string `json:"period_start"`
		} `json:"items"`
		TaxRules []invoicing.TaxRule `json:"tax_rules"`
	}
	require.NoError(t, json.Unmarshal(client.bodies[0], &doc))
	assert.Equal(t, "INV-20260331-0007", doc.Number)
	assert.Equal(t, inv.Total.MinorUnits(), doc.Total.MinorUnits)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "1", doc.Items[0].Quantity)
	assert.NotEmpty(t, doc.Items[0].PeriodStart)
	require.Len(t, doc.TaxRules, 1)
	assert.Equal(t, "VAT", doc.TaxRules[0].Name)
}

func TestS3InvoiceArchive_StoreError(t *testing.T) {
	client := &fakeObjectClient{putErr: errors.New("access denied")}
	archive := NewS3InvoiceArchiveWithClient(client, "b", "", nil)

	_, err := archive.Store(context.Background(), issuedInvoice(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive invoice INV-20260331-0007")
}

func TestS3InvoiceArchive_KeyWithoutNumber(t *testing.T) {
	archive := NewS3InvoiceArchiveWithClient(&fakeObjectClient{}, "b", "snap/", nil)
	inv := issuedInvoice(t)
	inv.Number = ""

	assert.Equal(t, "snap/2026/03/"+inv.ID.String()+".json", archive.Key(inv))
}

func TestS3InvoiceArchive_EnsureBucket(t *testing.T) {
	t.Run("existing bucket", func(t *testing.T) {
		client := &fakeObjectClient{}
		require.NoError(t, NewS3InvoiceArchiveWithClient(client, "b", "", nil).EnsureBucket(context.Background()))
		assert.Empty(t, client.createdFor)
	})

	t.Run("missing bucket is created", func(t *testing.T) {
		client := &fakeObjectClient{headErr: &types.NotFound{}}
		require.NoError(t, NewS3InvoiceArchiveWithClient(client, "b", "", nil).EnsureBucket(context.Background()))
		assert.Equal(t, []string{"b"}, client.createdFor)
	})

	t.Run("creation race is tolerated", func(t *testing.T) {
		client := &fakeObjectClient{headErr: &types.NoSuchBucket{}, createErr: &types.BucketAlreadyOwnedByYou{}}
		assert.NoError(t, NewS3InvoiceArchiveWithClient(client, "b", "", nil).EnsureBucket(context.Background()))
	})

	t.Run("other errors surface", func(t *testing.T) {
		client := &fakeObjectClient{headErr: errors.New("forbidden")}
		err := NewS3InvoiceArchiveWithClient(client, "b", "", nil).EnsureBucket(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "check bucket b")
	})
}

func TestNewS3InvoiceArchive(t *testing.T) {
	_, err := NewS3InvoiceArchive(context.Background(), config.StorageConfig{}, nil)
	require.Error(t, err)

	archive, err := NewS3InvoiceArchive(context.Background(), config.StorageConfig{
		Bucket:          "billing-archive",
		Endpoint:        "localhost:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		Prefix:          "invoices/",
		UsePathStyle:    true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "invoices/", archive.prefix)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://s3.local", endpointURL("s3.local"))
	assert.Equal(t, "http://localhost:9000", endpointURL("http://localhost:9000"))
}

func TestNopArchive(t *testing.T) {
	loc, err := NopArchive{}.Store(context.Background(), issuedInvoice(t))
	require.NoError(t, err)
	assert.Empty(t, loc)
}
