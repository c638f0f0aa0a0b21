package datasource

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves canned listings and objects. Listings are keyed by the
// request prefix, objects by key.
type fakeS3 struct {
	prefixes map[string][]string // prefix -> CommonPrefixes
	keys     map[string][]string // prefix -> object keys
	objects  map[string][]byte   // key -> body
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(params.Prefix)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, p := range f.prefixes[prefix] {
		out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(p)})
	}
	for _, k := range f.keys[prefix] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body := f.objects[aws.ToString(params.Key)]
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func gzipLines(t *testing.T, lines ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, line := range lines {
		_, err := gz.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestListFolders(t *testing.T) {
	client := &fakeS3{
		prefixes: map[string][]string{
			"": {"vehicles/", "maintenance/", "vehicles/"},
		},
	}

	folders, err := ListFolders(context.Background(), client, "vehicle-data")
	require.NoError(t, err)
	assert.Equal(t, []string{"maintenance/", "vehicles/"}, folders)
}

func TestCrawlerTargets(t *testing.T) {
	client := &fakeS3{
		prefixes: map[string][]string{
			"": {"vehicles/", "maintenance/"},
		},
	}

	targets, err := CrawlerTargets(context.Background(), client, "vehicle-data")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"s3://vehicle-data/maintenance/AWSDynamoDB/data/",
		"s3://vehicle-data/vehicles/AWSDynamoDB/data/",
	}, targets)
}

func TestSample(t *testing.T) {
	client := &fakeS3{
		keys: map[string][]string{
			"vehicles/AWSDynamoDB/data/": {
				"vehicles/AWSDynamoDB/data/part-0.json.gz",
				"vehicles/AWSDynamoDB/data/manifest.txt",
			},
		},
		objects: map[string][]byte{
			"vehicles/AWSDynamoDB/data/part-0.json.gz": gzipLines(t,
				`{"vin":"1A2B","make":"toyota"}`,
				`not json`,
				`{"vin":"3C4D","mileage":92000}`,
			),
		},
	}

	tc, err := Sample(context.Background(), client, "vehicle-data", "vehicles/")
	require.NoError(t, err)
	assert.Equal(t, []string{"make", "mileage", "vin"}, tc.Columns)
	assert.Equal(t, map[string]any{"vin": "1A2B", "make": "toyota"}, tc.Sample)
}

func TestAnalyzeAll(t *testing.T) {
	client := &fakeS3{
		keys: map[string][]string{
			"vehicles/AWSDynamoDB/data/": {"vehicles/AWSDynamoDB/data/part-0.json.gz"},
		},
		objects: map[string][]byte{
			"vehicles/AWSDynamoDB/data/part-0.json.gz": gzipLines(t, `{"vin":"1A2B"}`),
		},
	}

	contexts, err := AnalyzeAll(context.Background(), client, "vehicle-data", []string{"vehicles/", "empty/"})
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, []string{"vin"}, contexts["vehicles/"].Columns)
	assert.Empty(t, contexts["empty/"].Columns)
	assert.Nil(t, contexts["empty/"].Sample)
}

func TestAnalyzeCSVDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "service records")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024.csv"),
		[]byte("vin,cost\n1A2B,450\n3C4D,120\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"),
		[]byte("not a csv"), 0o644))

	contexts, err := AnalyzeCSVDir(root)
	require.NoError(t, err)
	require.Len(t, contexts, 1)

	tc, ok := contexts["service_records"]
	require.True(t, ok)
	assert.Equal(t, []string{"vin", "cost"}, tc.Columns)
	assert.Equal(t, map[string]any{"vin": "1A2B", "cost": "450"}, tc.Sample)
}

func TestAnalyzeCSVDirHeaderOnly(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "vehicles.csv"),
		[]byte("vin,make\n"), 0o644))

	contexts, err := AnalyzeCSVDir(root)
	require.NoError(t, err)

	tc := contexts["vehicles.csv"]
	assert.Equal(t, []string{"vin", "make"}, tc.Columns)
	assert.Nil(t, tc.Sample)
}
