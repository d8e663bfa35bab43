package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"echobench/internal/storage"
)

func fileName(prefix, name, suffix string) string {
	return prefix + "_" + strings.ToLower(name) + suffix
}

// Export writes <prefix>_report.json and one <prefix>_<transport>.csv of
// latency samples per transport. It returns the paths written.
func Export(rep *Report, prefix string) ([]string, error) {
	jsonPath := prefix + "_report.json"
	if err := ExportJSON(rep, jsonPath); err != nil {
		return nil, err
	}
	paths := []string{jsonPath}

	for _, tr := range rep.Transports {
		if tr.Result == nil {
			continue
		}
		path := fileName(prefix, tr.Name, ".csv")
		if err := ExportCSV(tr, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ExportCSV writes one row per latency sample.
// Schema: request_id,latency_ms
func ExportCSV(tr TransportReport, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"request_id", "latency_ms"}); err != nil {
		return err
	}
	for _, s := range tr.Result.Samples {
		record := []string{
			strconv.FormatUint(s.RequestID, 10),
			strconv.FormatFloat(s.LatencyMillis, 'f', 3, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return errors.Wrapf(w.Error(), "write %s", filename)
}

func ExportJSON(rep *Report, filename string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrapf(os.WriteFile(filename, data, 0644), "write %s", filename)
}

// ExportDistributions writes the hdr percentile distribution of each
// transport to <prefix>_<transport>_distribution.txt.
func ExportDistributions(rep *Report, prefix string) ([]string, error) {
	var paths []string
	for _, tr := range rep.Transports {
		if tr.Result == nil || tr.Result.Histogram == nil {
			continue
		}
		path := fileName(prefix, tr.Name, "_distribution.txt")
		f, err := os.Create(path)
		if err != nil {
			return paths, errors.Wrap(err, "create distribution")
		}
		err = tr.Result.Histogram.WriteDistribution(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, errors.Wrapf(err, "write %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// HistoryItem reduces the report to what the history store keeps. Raw
// samples are left out.
func (r *Report) HistoryItem() storage.HistoryItem {
	item := storage.HistoryItem{
		Timestamp: r.Timestamp,
		Config:    r.Config,
	}
	for _, tr := range r.Transports {
		run := storage.RunSummary{Transport: tr.Name}
		if tr.Result != nil {
			run.Sent = tr.Result.Sent
			run.Completed = tr.Result.Completed
			run.Failed = tr.Result.Counts.Failed()
			run.ThroughputRPS = tr.Result.Throughput
		}
		if tr.Latency != nil {
			run.Latency = *tr.Latency
		}
		item.Runs = append(item.Runs, run)
	}
	if r.Comparison != nil {
		item.Winners = r.Comparison.Winners
	}
	return item
}
