package tester

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/Algorysh/Networking-Tests/model"
)

// openResultsLog creates the timestamped results log in LogDir, named
// after the moment the sweep begins. Append mode keeps an interrupted
// and restarted sweep from clobbering earlier rows in the same second.
func (t *Tester) openResultsLog() (*os.File, error) {
	name := fmt.Sprintf("log-%s.txt", t.begin.Format("2006-01-02-15-04-05"))
	t.logPath = path.Join(t.LogDir, name)
	return t.deps.OSOpenFile(t.logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

func (t *Tester) writeLogHeader(w io.Writer) {
	fmt.Fprintf(w, "\n=== SCALABILITY TEST STARTED ===\n")
	fmt.Fprintf(w, "Timestamp: %s\n", timestamp(time.Now()))
	fmt.Fprintf(w, "Format: Protocol,ClientCount,Timestamp,ThroughputMBps,"+
		"ConnectionsPerSec,PeakConcurrent,SuccessRate,TotalReqs,"+
		"SuccessfulReqs,P1,P2,...,P100\n\n")
}

// logResult prints the run summary and appends the full row to the
// results log: the nine leading fields, then every percentile.
func (t *Tester) logResult(w io.Writer, result model.RunResult) {
	t.Logger.Infof("Clients: %d, Throughput: %.2f MB/s, P50: %.3fms, P95: %.3fms, P99: %.3fms",
		result.ClientCount, result.ThroughputMBps,
		result.Percentiles[49], result.Percentiles[94], result.Percentiles[98])

	fmt.Fprintf(w, "%s,%d,%s,%.6f,%.6f,%d,%.6f,%d,%d",
		result.Protocol, result.ClientCount, result.Timestamp,
		result.ThroughputMBps, result.ConnectionsPerSec,
		result.PeakConcurrent, result.SuccessRate,
		result.TotalRequests, result.SuccessfulRequests)
	for _, percentile := range result.Percentiles {
		fmt.Fprintf(w, ",%.6f", percentile)
	}
	fmt.Fprintf(w, "\n")
}

func (t *Tester) buildArchive() (*model.Archive, error) {
	hostname, err := t.deps.OSHostname()
	if err != nil {
		return nil, err
	}
	return &model.Archive{
		SchemaVersion: model.ArchiveSchemaVersion,
		Started:       timestamp(t.begin),
		Hostname:      hostname,
		Runs:          t.results,
	}, nil
}

// savedata archives the sweep under DataDir/YYYY/MM/DD as compressed
// JSON, named with nanosecond precision so concurrent sweeps on the
// same host cannot collide; O_EXCL turns any collision into an error.
func (t *Tester) savedata(archive *model.Archive) error {
	name := path.Join(t.DataDir, t.begin.Format("2006/01/02"))
	if err := t.deps.OSMkdirAll(name, 0755); err != nil {
		return err
	}
	name += "/scale-tester-" + t.begin.Format("20060102T150405.000000000Z") + ".json.gz"
	filep, err := t.deps.OSOpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer filep.Close()
	zipper, err := t.deps.GzipNewWriterLevel(filep, gzip.BestSpeed)
	if err != nil {
		return err
	}
	defer zipper.Close()
	data, err := t.deps.JSONMarshal(archive)
	if err != nil {
		return err
	}
	_, err = zipper.Write(data)
	return err
}
