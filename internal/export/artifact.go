package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"consentlake/internal/lake"
	"consentlake/internal/logentry"
	"consentlake/internal/pii"
	dErrors "consentlake/pkg/domain-errors"
)

// Scanner finds residual PII in exported text.
type Scanner interface {
	DetectPIIFields(entry *logentry.Entry) []pii.Field
}

// maxReportedIssues bounds ValidationReport.Issues.
const maxReportedIssues = 50

// artifactKey names an export under the output path.
func artifactKey(outputPath string, now time.Time) string {
	return fmt.Sprintf("%s/ai_training_data_%s_%s.jsonl.gz",
		strings.TrimSuffix(outputPath, "/"), now.UTC().Format("2006-01-02-150405"), uuid.NewString()[:8])
}

// writeArtifact uploads records as gzipped JSON lines and returns the key
// and stored size.
func (e *Exporter) writeArtifact(ctx context.Context, records []*TrainingEntry) (string, int64, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return "", 0, fmt.Errorf("encode training record: %w", err)
		}
	}
	body, err := gzipBytes(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
	if err != nil {
		return "", 0, err
	}

	now := e.now()
	key := artifactKey(e.cfg.OutputPath, now)
	opts := lake.PutOptions{
		ContentType: lake.ContentTypeGzip,
		Metadata: map[string]string{
			lake.MetaExportSource:    "data-lake",
			lake.MetaExportTimestamp: now.UTC().Format(time.RFC3339Nano),
			lake.MetaRecordCount:     strconv.Itoa(len(records)),
			lake.MetaServices:        strings.Join(e.cfg.Services, ","),
		},
	}
	err = lake.WithRequestTimeout(ctx, e.cfg.RequestTimeout, func(ctx context.Context) error {
		return e.store.Put(ctx, key, body, opts)
	})
	if err != nil {
		return "", 0, fmt.Errorf("upload %s: %w", key, err)
	}

	size := int64(len(body))
	if info, err := e.store.Stat(ctx, key); err != nil {
		e.logger.WarnContext(ctx, "failed to stat export artifact", "key", key, "error", err)
	} else {
		size = info.Size
	}
	e.logger.InfoContext(ctx, "exported training records", "key", key, "records", len(records), "bytes", size)
	return key, size, nil
}

// ValidationReport is the result of checking an exported artifact.
type ValidationReport struct {
	Key          string   `json:"key"`
	Records      int      `json:"records"`
	Invalid      int      `json:"invalid"`
	PIIFindings  int      `json:"pii_findings"`
	ScoreAverage float64  `json:"score_average"`
	Issues       []string `json:"issues"`
}

// OK reports whether every record is well formed and free of residual PII.
func (r *ValidationReport) OK() bool {
	return r.Invalid == 0 && r.PIIFindings == 0
}

func (r *ValidationReport) issue(format string, args ...any) {
	if len(r.Issues) < maxReportedIssues {
		r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
	}
}

// ValidateArtifact re-reads an exported artifact and checks each line:
// it must parse, carry the required fields, hold a score within [0, 1], and
// contain no PII the scanner can still find.
func (e *Exporter) ValidateArtifact(ctx context.Context, key string) (*ValidationReport, error) {
	var obj *lake.Object
	err := lake.WithRequestTimeout(ctx, e.cfg.RequestTimeout, func(ctx context.Context) error {
		var err error
		obj, err = e.store.Get(ctx, key)
		return err
	})
	if errors.Is(err, lake.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("artifact %s not found", key))
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExportFailed, fmt.Sprintf("read artifact %s: %v", key, err))
	}
	body := obj.Body
	if lake.IsCompressed(key) {
		if body, err = gunzip(body); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeExportFailed, fmt.Sprintf("read artifact %s: %v", key, err))
		}
	}

	report := &ValidationReport{Key: key, Issues: []string{}}
	var scoreSum float64
	for n, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		report.Records++
		lineNo := n + 1

		var rec TrainingEntry
		if err := json.Unmarshal(line, &rec); err != nil {
			report.Invalid++
			report.issue("line %d: not a training record: %v", lineNo, err)
			continue
		}
		if missing := missingFields(&rec); len(missing) > 0 {
			report.Invalid++
			report.issue("line %d: missing %s", lineNo, strings.Join(missing, ", "))
			continue
		}
		if rec.QualityScore < 0 || rec.QualityScore > 1 {
			report.Invalid++
			report.issue("line %d: quality_score %.3f outside [0, 1]", lineNo, rec.QualityScore)
			continue
		}
		scoreSum += rec.QualityScore

		if e.scanner != nil {
			found := e.scanner.DetectPIIFields(logentry.FromFields(map[string]any{
				"prompt":     rec.Prompt,
				"completion": rec.Completion,
			}))
			for _, f := range found {
				report.PIIFindings++
				report.issue("line %d: %s in %s", lineNo, f.Category, f.Path)
			}
		}
	}
	if valid := report.Records - report.Invalid; valid > 0 {
		report.ScoreAverage = scoreSum / float64(valid)
	}
	e.logger.InfoContext(ctx, "validated export artifact",
		"key", key,
		"records", report.Records,
		"invalid", report.Invalid,
		"pii_findings", report.PIIFindings,
	)
	return report, nil
}

func missingFields(r *TrainingEntry) []string {
	var missing []string
	if r.ID == "" {
		missing = append(missing, "id")
	}
	if r.Prompt == "" {
		missing = append(missing, "prompt")
	}
	if r.Completion == "" {
		missing = append(missing, "completion")
	}
	if r.Source == "" {
		missing = append(missing, "source")
	}
	return missing
}

// ServiceStats counts raw objects for one service.
type ServiceStats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// LakeReport summarizes raw partitions over a trailing window of days.
type LakeReport struct {
	Start    time.Time               `json:"start"`
	End      time.Time               `json:"end"`
	Services map[string]ServiceStats `json:"services"`
	Files    int                     `json:"files"`
	Bytes    int64                   `json:"bytes"`
}

// LakeStats counts raw objects per service whose partition day falls in the
// last days days, today included.
func (e *Exporter) LakeStats(ctx context.Context, days int) (*LakeReport, error) {
	if days <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "days must be positive")
	}
	end := lake.EndOfDay(e.now())
	start := lake.StartOfDay(end).AddDate(0, 0, -(days - 1))

	var objects []lake.ObjectInfo
	err := lake.WithRequestTimeout(ctx, e.cfg.RequestTimeout, func(ctx context.Context) error {
		var err error
		objects, err = e.store.List(ctx, lake.RawPrefix)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExportFailed, fmt.Sprintf("list %s: %v", lake.RawPrefix, err))
	}

	report := &LakeReport{Start: start, End: end, Services: map[string]ServiceStats{}}
	for _, obj := range objects {
		service, ok := lake.ServiceFromKey(obj.Key)
		if !ok {
			continue
		}
		day, ok := lake.DayFromKey(obj.Key)
		if !ok || day.Before(start) || day.After(end) {
			continue
		}
		s := report.Services[service]
		s.Files++
		s.Bytes += obj.Size
		report.Services[service] = s
		report.Files++
		report.Bytes += obj.Size
	}
	return report, nil
}
