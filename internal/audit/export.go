package audit

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

// ExportFormat selects the output encoding for ExportRecords.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
	FormatHTML ExportFormat = "html"
)

// ExportRecords writes the records to w in the requested format.
func ExportRecords(w io.Writer, records []*model.AuditRecord, format ExportFormat) error {
	switch format {
	case FormatJSON:
		return exportJSON(w, records)
	case FormatCSV:
		return exportCSV(w, records)
	case FormatHTML:
		return exportHTML(w, records)
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}
}

func exportJSON(w io.Writer, records []*model.AuditRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func exportCSV(w io.Writer, records []*model.AuditRecord) error {
	cw := csv.NewWriter(w)
	header := []string{"event_id", "timestamp", "event_type", "subject_id", "actor", "payload", "prev_hash", "record_hash"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", rec.EventID, err)
		}
		row := []string{
			rec.EventID,
			rec.Timestamp.Format(time.RFC3339Nano),
			string(rec.EventType),
			rec.SubjectID,
			rec.Actor,
			string(payload),
			string(rec.PrevHash),
			string(rec.RecordHash),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

var htmlReport = template.Must(template.New("audit").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Gryt Audit Trail Report</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; background: #f5f5f5; }
.container { max-width: 1200px; margin: 0 auto; background: white; padding: 20px; }
h1 { color: #2c3e50; border-bottom: 3px solid #3498db; padding-bottom: 10px; }
.stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 20px; margin: 20px 0; }
.stat-card { background: #ecf0f1; padding: 15px; border-radius: 5px; }
.stat-value { font-size: 2em; font-weight: bold; color: #3498db; }
table { width: 100%; border-collapse: collapse; margin: 20px 0; }
th { background: #34495e; color: white; padding: 10px; text-align: left; }
td { padding: 8px 10px; border-bottom: 1px solid #ecf0f1; font-size: 0.9em; }
.hash { font-family: monospace; color: #7f8c8d; }
</style>
</head>
<body>
<div class="container">
<h1>Gryt Audit Trail Report</h1>
<p>Exported {{.ExportedAt}}</p>
<div class="stats">
<div class="stat-card"><div class="stat-value">{{.Total}}</div>Events</div>
{{range .ByType}}<div class="stat-card"><div class="stat-value">{{.Count}}</div>{{.Type}}</div>
{{end}}</div>
<table>
<tr><th>Timestamp</th><th>Event</th><th>Subject</th><th>Actor</th><th>Payload</th><th>Hash</th></tr>
{{range .Records}}<tr><td>{{.Timestamp}}</td><td>{{.EventType}}</td><td>{{.SubjectID}}</td><td>{{.Actor}}</td><td>{{.Payload}}</td><td class="hash">{{.Hash}}</td></tr>
{{end}}</table>
</div>
</body>
</html>
`))

type htmlTypeCount struct {
	Type  string
	Count int
}

type htmlRecord struct {
	Timestamp string
	EventType string
	SubjectID string
	Actor     string
	Payload   string
	Hash      string
}

func exportHTML(w io.Writer, records []*model.AuditRecord) error {
	counts := make(map[string]int)
	rows := make([]htmlRecord, 0, len(records))
	for _, rec := range records {
		counts[string(rec.EventType)]++
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", rec.EventID, err)
		}
		hash := string(rec.RecordHash)
		if len(hash) > 12 {
			hash = hash[:12]
		}
		rows = append(rows, htmlRecord{
			Timestamp: rec.Timestamp.Format(time.RFC3339),
			EventType: string(rec.EventType),
			SubjectID: rec.SubjectID,
			Actor:     rec.Actor,
			Payload:   string(payload),
			Hash:      hash,
		})
	}

	byType := make([]htmlTypeCount, 0, len(counts))
	for eventType, count := range counts {
		byType = append(byType, htmlTypeCount{Type: eventType, Count: count})
	}
	sort.Slice(byType, func(i, j int) bool { return byType[i].Type < byType[j].Type })

	return htmlReport.Execute(w, struct {
		ExportedAt string
		Total      int
		ByType     []htmlTypeCount
		Records    []htmlRecord
	}{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Total:      len(records),
		ByType:     byType,
		Records:    rows,
	})
}
