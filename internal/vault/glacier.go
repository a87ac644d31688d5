// Package vault talks to the remote cold store (an AWS Glacier vault).
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/glacier"
	"github.com/aws/aws-sdk-go-v2/service/glacier/types"

	"github.com/starford/isaz/internal/apperr"
)

// Archive is one entry of the remote inventory. Field names follow the
// Glacier inventory JSON.
type Archive struct {
	ArchiveID    string `json:"ArchiveId"`
	Description  string `json:"ArchiveDescription"`
	Size         int64  `json:"Size"`
	CreationDate string `json:"CreationDate"`
}

// glacierAPI is the slice of the Glacier SDK surface the client uses.
type glacierAPI interface {
	UploadArchive(ctx context.Context, params *glacier.UploadArchiveInput, optFns ...func(*glacier.Options)) (*glacier.UploadArchiveOutput, error)
	InitiateJob(ctx context.Context, params *glacier.InitiateJobInput, optFns ...func(*glacier.Options)) (*glacier.InitiateJobOutput, error)
	DescribeJob(ctx context.Context, params *glacier.DescribeJobInput, optFns ...func(*glacier.Options)) (*glacier.DescribeJobOutput, error)
	GetJobOutput(ctx context.Context, params *glacier.GetJobOutputInput, optFns ...func(*glacier.Options)) (*glacier.GetJobOutputOutput, error)
}

// Client uploads archives to a single vault and retrieves its inventory.
// Inventory retrieval in Glacier is asynchronous; the client polls the job
// with a bounded attempt budget instead of waiting forever.
type Client struct {
	api             glacierAPI
	vaultName       string
	accountID       string
	pollInterval    time.Duration
	pollMaxAttempts int
	logger          *slog.Logger
}

// NewClient builds a Client from the default AWS credential chain.
// An empty accountID means "the account of the credentials" (Glacier's
// "-" convention).
func NewClient(ctx context.Context, region, vaultName, accountID string, pollInterval time.Duration, pollMaxAttempts int, logger *slog.Logger) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("vault: load aws config: %w", err)
	}
	return newClient(glacier.NewFromConfig(cfg), vaultName, accountID, pollInterval, pollMaxAttempts, logger), nil
}

func newClient(api glacierAPI, vaultName, accountID string, pollInterval time.Duration, pollMaxAttempts int, logger *slog.Logger) *Client {
	if accountID == "" {
		accountID = "-"
	}
	return &Client{
		api:             api,
		vaultName:       vaultName,
		accountID:       accountID,
		pollInterval:    pollInterval,
		pollMaxAttempts: pollMaxAttempts,
		logger:          logger,
	}
}

// Upload ships the archive file and blocks until Glacier has durably
// accepted it. The returned archive ID is the remote handle. Failures wrap
// apperr.ErrRemote and must prevent the caller's status write.
func (c *Client) Upload(ctx context.Context, archivePath, description string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("vault: open archive: %w", err)
	}
	defer f.Close()

	c.logger.Info("vault: uploading",
		slog.String("vault", c.vaultName),
		slog.String("description", description))

	out, err := c.api.UploadArchive(ctx, &glacier.UploadArchiveInput{
		AccountId:          aws.String(c.accountID),
		VaultName:          aws.String(c.vaultName),
		ArchiveDescription: aws.String(description),
		Body:               f,
	})
	if err != nil {
		return "", fmt.Errorf("vault: upload %q: %w: %w", description, apperr.ErrRemote, err)
	}
	return aws.ToString(out.ArchiveId), nil
}

// Inventory initiates an inventory-retrieval job, waits for it to complete
// and returns the archive list.
func (c *Client) Inventory(ctx context.Context) ([]Archive, error) {
	job, err := c.api.InitiateJob(ctx, &glacier.InitiateJobInput{
		AccountId: aws.String(c.accountID),
		VaultName: aws.String(c.vaultName),
		JobParameters: &types.JobParameters{
			Type: aws.String("inventory-retrieval"),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vault: initiate inventory job: %w: %w", apperr.ErrRemote, err)
	}
	jobID := aws.ToString(job.JobId)

	if err := c.awaitJob(ctx, jobID); err != nil {
		return nil, err
	}

	out, err := c.api.GetJobOutput(ctx, &glacier.GetJobOutputInput{
		AccountId: aws.String(c.accountID),
		VaultName: aws.String(c.vaultName),
		JobId:     aws.String(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("vault: get job output: %w: %w", apperr.ErrRemote, err)
	}
	defer out.Body.Close()

	archives, err := ParseInventory(out.Body)
	if err != nil {
		return nil, err
	}
	return archives, nil
}

// awaitJob polls the job description until Glacier reports it complete.
// Exhausting the attempt budget is a remote error, never an endless loop.
func (c *Client) awaitJob(ctx context.Context, jobID string) error {
	for attempt := 1; attempt <= c.pollMaxAttempts; attempt++ {
		desc, err := c.api.DescribeJob(ctx, &glacier.DescribeJobInput{
			AccountId: aws.String(c.accountID),
			VaultName: aws.String(c.vaultName),
			JobId:     aws.String(jobID),
		})
		if err != nil {
			return fmt.Errorf("vault: describe job %s: %w: %w", jobID, apperr.ErrRemote, err)
		}
		if desc.Completed {
			if desc.StatusCode != types.StatusCodeSucceeded {
				return fmt.Errorf("vault: job %s finished with status %s: %w", jobID, desc.StatusCode, apperr.ErrRemote)
			}
			return nil
		}

		c.logger.Debug("vault: job pending",
			slog.String("job_id", jobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.pollMaxAttempts))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return fmt.Errorf("vault: job %s still pending after %d attempts: %w", jobID, c.pollMaxAttempts, apperr.ErrRemote)
}

// inventoryDocument is the JSON shape of a Glacier inventory job output.
type inventoryDocument struct {
	VaultARN      string    `json:"VaultARN"`
	InventoryDate string    `json:"InventoryDate"`
	ArchiveList   []Archive `json:"ArchiveList"`
}

// ParseInventory decodes an inventory-retrieval job output document.
func ParseInventory(r io.Reader) ([]Archive, error) {
	var doc inventoryDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("vault: decode inventory: %w", err)
	}
	return doc.ArchiveList, nil
}
