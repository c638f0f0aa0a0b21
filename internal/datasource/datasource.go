// Package datasource discovers source-data layouts in S3 and samples their
// schemas. The data bucket holds one top-level folder per DynamoDB table
// export, each with gzipped line-delimited JSON under AWSDynamoDB/data/.
package datasource

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client is the slice of the S3 API this package uses.
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// TableContext holds the sampled shape of one data folder.
type TableContext struct {
	// Columns is the union of attribute names seen across sampled records.
	Columns []string

	// Sample is the first complete record, kept for example generation.
	Sample map[string]any
}

// ListFolders returns the bucket's top-level folder prefixes, sorted. Each
// prefix keeps its trailing slash.
func ListFolders(ctx context.Context, client Client, bucket string) ([]string, error) {
	seen := make(map[string]struct{})

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing folders in s3://%s: %w", bucket, err)
		}
		for _, prefix := range page.CommonPrefixes {
			if prefix.Prefix != nil {
				seen[*prefix.Prefix] = struct{}{}
			}
		}
	}

	folders := make([]string, 0, len(seen))
	for f := range seen {
		folders = append(folders, f)
	}
	sort.Strings(folders)
	return folders, nil
}

// CrawlerTargets maps each top-level folder to its DynamoDB export data path
// for the Glue crawler.
func CrawlerTargets(ctx context.Context, client Client, bucket string) ([]string, error) {
	folders, err := ListFolders(ctx, client, bucket)
	if err != nil {
		return nil, err
	}
	targets := make([]string, len(folders))
	for i, folder := range folders {
		targets[i] = fmt.Sprintf("s3://%s/%sAWSDynamoDB/data/", bucket, folder)
	}
	return targets, nil
}

// Sample scans the gzipped JSON objects under <folder>AWSDynamoDB/data/ and
// collects the union of column names plus the first record. Malformed lines
// are skipped.
func Sample(ctx context.Context, client Client, bucket, folder string) (TableContext, error) {
	tc := TableContext{}
	columns := make(map[string]struct{})
	prefix := strings.TrimSuffix(folder, "/") + "/AWSDynamoDB/data/"

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return tc, fmt.Errorf("listing s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".json.gz") {
				continue
			}
			if err := sampleObject(ctx, client, bucket, *obj.Key, columns, &tc); err != nil {
				// A single unreadable object never fails the whole folder.
				log.Warnf("sampling s3://%s/%s: %v", bucket, *obj.Key, err)
			}
		}
	}

	tc.Columns = make([]string, 0, len(columns))
	for c := range columns {
		tc.Columns = append(tc.Columns, c)
	}
	sort.Strings(tc.Columns)
	return tc, nil
}

// AnalyzeAll samples every folder and returns the per-folder context keyed by
// folder name.
func AnalyzeAll(ctx context.Context, client Client, bucket string, folders []string) (map[string]TableContext, error) {
	contexts := make(map[string]TableContext, len(folders))
	for _, folder := range folders {
		tc, err := Sample(ctx, client, bucket, folder)
		if err != nil {
			return nil, err
		}
		contexts[folder] = tc
	}
	return contexts, nil
}

func sampleObject(ctx context.Context, client Client, bucket, key string, columns map[string]struct{}, tc *TableContext) error {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	gz, err := gzip.NewReader(out.Body)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			log.Debugf("skipping malformed JSON line in %s: %v", key, err)
			continue
		}
		if tc.Sample == nil {
			tc.Sample = record
		}
		for k := range record {
			columns[k] = struct{}{}
		}
	}
	return scanner.Err()
}
