package datasource

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

// AnalyzeCSVDir walks a local directory and samples every CSV file it finds:
// header row as columns, first data row as the sample. Results are keyed by
// the first path element under root with spaces replaced by underscores,
// matching how the crawler names tables from folder layouts.
func AnalyzeCSVDir(root string) (map[string]TableContext, error) {
	contexts := make(map[string]TableContext)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}

		tc, err := sampleCSV(path)
		if err != nil {
			log.Warnf("sampling %s: %v", path, err)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := strings.ReplaceAll(strings.Split(rel, string(os.PathSeparator))[0], " ", "_")
		contexts[key] = tc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return contexts, nil
}

func sampleCSV(path string) (TableContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return TableContext{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return TableContext{}, fmt.Errorf("reading header: %w", err)
	}

	tc := TableContext{Columns: header}
	record, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return tc, nil
		}
		return TableContext{}, fmt.Errorf("reading first record: %w", err)
	}

	tc.Sample = make(map[string]any, len(header))
	for i, col := range header {
		if i < len(record) {
			tc.Sample[col] = record[i]
		}
	}
	return tc, nil
}
