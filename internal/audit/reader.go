package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/EpykLab/gryt-ci/pkg/model"
)

// Filter narrows the records returned by List. Zero values match all.
type Filter struct {
	EventType model.AuditEventType
	SubjectID string
	Actor     string
	Since     time.Time
	Until     time.Time
	Limit     int
}

func (f Filter) matches(r *model.AuditRecord) bool {
	if f.EventType != "" && r.EventType != f.EventType {
		return false
	}
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if f.Actor != "" && r.Actor != f.Actor {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Reader reads and verifies the audit log without mutating it.
type Reader struct {
	path string
}

// NewReader creates a Reader for the given audit log path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// List returns records matching the filter, oldest first. A missing
// log file yields an empty slice.
func (r *Reader) List(filter Filter) ([]*model.AuditRecord, error) {
	records, err := r.readAll()
	if err != nil {
		return nil, err
	}

	var out []*model.AuditRecord
	for _, rec := range records {
		if filter.matches(rec) {
			out = append(out, rec)
		}
	}

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}

	return out, nil
}

// ChainError describes a break in the hash chain.
type ChainError struct {
	Line    int
	EventID string
	Reason  string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at line %d (event %s): %s", e.Line, e.EventID, e.Reason)
}

// VerifyChain walks the whole log and checks every record's hash and
// its link to the previous record. Returns the number of verified
// records, or a ChainError at the first break.
func (r *Reader) VerifyChain() (int, error) {
	records, err := r.readAll()
	if err != nil {
		return 0, err
	}

	var prevHash model.HashValue
	for i, rec := range records {
		if rec.PrevHash != prevHash {
			return i, &ChainError{
				Line:    i + 1,
				EventID: rec.EventID,
				Reason:  fmt.Sprintf("prev_hash %q does not match preceding record hash %q", rec.PrevHash, prevHash),
			}
		}
		want, err := ComputeRecordHash(rec)
		if err != nil {
			return i, fmt.Errorf("recompute hash at line %d: %w", i+1, err)
		}
		if rec.RecordHash != want {
			return i, &ChainError{
				Line:    i + 1,
				EventID: rec.EventID,
				Reason:  "record_hash does not match record contents",
			}
		}
		prevHash = rec.RecordHash
	}

	return len(records), nil
}

// Stats summarizes audit activity, mirroring what the log itself
// records rather than the live store state.
type Stats struct {
	TotalRecords        int            `json:"total_records"`
	GenerationsCreated  int            `json:"generations_created"`
	GenerationsPromoted int            `json:"generations_promoted"`
	EvolutionsStarted   int            `json:"evolutions_started"`
	EvolutionsPassed    int            `json:"evolutions_passed"`
	EvolutionsFailed    int            `json:"evolutions_failed"`
	PassRate            float64        `json:"pass_rate"`
	ByEventType         map[string]int `json:"by_event_type"`
	FirstEventAt        *time.Time     `json:"first_event_at,omitempty"`
	LastEventAt         *time.Time     `json:"last_event_at,omitempty"`
}

// ComputeStats derives aggregate counts from the full log.
func (r *Reader) ComputeStats() (*Stats, error) {
	records, err := r.readAll()
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByEventType: make(map[string]int)}
	for _, rec := range records {
		stats.TotalRecords++
		stats.ByEventType[string(rec.EventType)]++

		switch rec.EventType {
		case model.EventGenerationCreated:
			stats.GenerationsCreated++
		case model.EventGenerationPromoted, model.EventHotfixPromoted:
			stats.GenerationsPromoted++
		case model.EventEvolutionStarted:
			stats.EvolutionsStarted++
		case model.EventEvolutionCompleted:
			if status, ok := rec.Payload["status"].(string); ok {
				switch model.EvolutionStatus(status) {
				case model.EvolutionPass:
					stats.EvolutionsPassed++
				case model.EvolutionFail:
					stats.EvolutionsFailed++
				}
			}
		}

		ts := rec.Timestamp
		if stats.FirstEventAt == nil {
			stats.FirstEventAt = &ts
		}
		stats.LastEventAt = &ts
	}

	if terminal := stats.EvolutionsPassed + stats.EvolutionsFailed; terminal > 0 {
		stats.PassRate = float64(stats.EvolutionsPassed) / float64(terminal)
	}

	return stats, nil
}

func (r *Reader) readAll() ([]*model.AuditRecord, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var records []*model.AuditRecord
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec model.AuditRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("parse audit record at line %d: %w", line, err)
		}
		records = append(records, &rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}

	return records, nil
}
