// Package journal persists one JSON document per day describing its ACTIVITY/BREAK blocks.
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/idleledger/internal/domain"
)

// SchemaVersion is written into every journal document.
const SchemaVersion = 1

// appName is recorded in the document header.
const appName = "idle-ledger"

// journalFileMode keeps journals readable by other local accounts.
const journalFileMode os.FileMode = 0o644

// Document is the on-disk shape of one day's journal.
type Document struct {
	SchemaVersion            int           `json:"schema_version"`
	App                      AppInfo       `json:"app"`
	Date                     string        `json:"date"`
	Timezone                 *string       `json:"timezone"`
	ThresholdSeconds         int           `json:"threshold_seconds"`
	TreatInhibitorAsActivity bool          `json:"treat_inhibitor_as_activity"`
	Blocks                   []BlockRecord `json:"blocks"`
	Totals                   TotalsRecord  `json:"totals"`
}

// AppInfo identifies the writer of a document.
type AppInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BlockRecord is one serialized block. Seconds and Open are derived and ignored on load.
type BlockRecord struct {
	Type    string  `json:"type"`
	Start   string  `json:"start"`
	End     *string `json:"end"`
	Seconds *int64  `json:"seconds"`
	Open    bool    `json:"open,omitempty"`
}

// TotalsRecord holds the per-state totals at write time.
type TotalsRecord struct {
	ActivitySeconds int64 `json:"activity_seconds"`
	BreakSeconds    int64 `json:"break_seconds"`
}

// Store reads and writes journal documents under one directory.
type Store struct {
	dir        string
	appVersion string
	rename     func(oldPath, newPath string) error
}

// NewStore constructs a store rooted at dir.
func NewStore(dir, appVersion string) *Store {
	if strings.TrimSpace(appVersion) == "" {
		appVersion = "dev"
	}
	return &Store{
		dir:        dir,
		appVersion: appVersion,
		rename:     os.Rename,
	}
}

// Dir returns the journal directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the journal file path for day.
func (s *Store) Path(day domain.Day) string {
	return filepath.Join(s.dir, day.String()+".json")
}

// WriteDay atomically replaces the day's journal with the manager's blocks. The open block,
// if any, is written with now as a checkpoint end and open=true. On failure the previous
// document is left untouched.
func (s *Store) WriteDay(day domain.Day, cfg domain.ClassifierConfig, manager *domain.BlockManager, now time.Time) (string, error) {
	if manager == nil {
		return "", errors.New("journal: nil block manager")
	}
	doc := s.buildDocument(day, cfg, manager, now)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode journal: %w", err)
	}
	data = append(data, '\n')

	path := s.Path(day)
	if err := writeFileAtomic(path, data, s.rename); err != nil {
		return "", err
	}
	return path, nil
}

// buildDocument serializes the ledger as of now.
func (s *Store) buildDocument(day domain.Day, cfg domain.ClassifierConfig, manager *domain.BlockManager, now time.Time) Document {
	history := manager.History()
	records := make([]BlockRecord, 0, len(history)+1)
	for _, b := range history {
		records = append(records, blockRecord(b, now, false))
	}
	if current, ok := manager.Current(); ok {
		records = append(records, blockRecord(current, now, true))
	}

	zone := zoneName(now)
	totals := manager.Totals(now)
	return Document{
		SchemaVersion:            SchemaVersion,
		App:                      AppInfo{Name: appName, Version: s.appVersion},
		Date:                     day.String(),
		Timezone:                 &zone,
		ThresholdSeconds:         cfg.ThresholdSeconds,
		TreatInhibitorAsActivity: cfg.TreatInhibitorAsActivity,
		Blocks:                   records,
		Totals: TotalsRecord{
			ActivitySeconds: totals.ActivitySeconds,
			BreakSeconds:    totals.BreakSeconds,
		},
	}
}

// blockRecord converts b, using now as the checkpoint end of an open block.
func blockRecord(b domain.Block, now time.Time, open bool) BlockRecord {
	out := BlockRecord{
		Type:  b.Type.String(),
		Start: formatTime(b.Start),
	}
	end := b.End
	if end == nil && open {
		end = &now
	}
	if end != nil {
		formatted := formatTime(*end)
		closed := domain.Block{Type: b.Type, Start: b.Start, End: end}
		seconds := closed.Seconds(*end)
		out.End = &formatted
		out.Seconds = &seconds
	}
	out.Open = open
	return out
}

// LoadDay rebuilds a manager from the day's journal. Every record comes back closed at its
// stored end, so time between the last checkpoint and now is left uncovered. Records without
// an end are dropped. A missing or unusable document reports false.
func (s *Store) LoadDay(day domain.Day) (*domain.BlockManager, bool) {
	record, ok := s.ReadDay(day)
	if !ok {
		return nil, false
	}
	manager := domain.NewBlockManager()
	manager.Load(record.Blocks, nil)
	return manager, true
}

// ReadDay tolerantly parses the day's journal. Items that are not objects or fail to parse
// are skipped; a document without a blocks array is unusable.
func (s *Store) ReadDay(day domain.Day) (domain.DayRecord, bool) {
	content, err := os.ReadFile(s.Path(day))
	if err != nil {
		return domain.DayRecord{}, false
	}
	var raw struct {
		Blocks json.RawMessage `json:"blocks"`
		Totals json.RawMessage `json:"totals"`
	}
	if err := json.Unmarshal(content, &raw); err != nil {
		return domain.DayRecord{}, false
	}
	if !bytes.HasPrefix(bytes.TrimSpace(raw.Blocks), []byte("[")) {
		return domain.DayRecord{}, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw.Blocks, &items); err != nil {
		return domain.DayRecord{}, false
	}

	record := domain.DayRecord{Day: day, Blocks: make([]domain.Block, 0, len(items))}
	for i, item := range items {
		b, open, ok := parseBlock(item)
		if !ok {
			continue
		}
		record.Blocks = append(record.Blocks, b)
		if i == len(items)-1 {
			record.LastOpen = open
		}
	}
	var totals TotalsRecord
	if err := json.Unmarshal(raw.Totals, &totals); err == nil {
		record.Stored = domain.Totals{ActivitySeconds: totals.ActivitySeconds, BreakSeconds: totals.BreakSeconds}
	}
	return record, true
}

// ReadDocument decodes the day's journal as stored.
func (s *Store) ReadDocument(day domain.Day) (Document, bool) {
	content, err := os.ReadFile(s.Path(day))
	if err != nil {
		return Document{}, false
	}
	var doc Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return Document{}, false
	}
	return doc, true
}

// Days lists the days that have a journal file, oldest first.
func (s *Store) Days() ([]domain.Day, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list journal dir: %w", err)
	}
	days := make([]domain.Day, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		day, err := domain.ParseDay(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Before(days[j])
	})
	return days, nil
}

// parseBlock decodes one record into a closed block and reports its open flag.
func parseBlock(item json.RawMessage) (domain.Block, bool, bool) {
	if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
		return domain.Block{}, false, false
	}
	var rec struct {
		Type  any `json:"type"`
		Start any `json:"start"`
		End   any `json:"end"`
		Open  any `json:"open"`
	}
	if err := json.Unmarshal(item, &rec); err != nil {
		return domain.Block{}, false, false
	}
	typeRaw, ok1 := rec.Type.(string)
	startRaw, ok2 := rec.Start.(string)
	endRaw, ok3 := rec.End.(string)
	if !ok1 || !ok2 || !ok3 {
		return domain.Block{}, false, false
	}
	state, err := domain.ParseState(typeRaw)
	if err != nil {
		return domain.Block{}, false, false
	}
	start, err := parseTime(startRaw)
	if err != nil {
		return domain.Block{}, false, false
	}
	end, err := parseTime(endRaw)
	if err != nil {
		return domain.Block{}, false, false
	}
	open, _ := rec.Open.(bool)
	return domain.Block{Type: state, Start: start, End: &end}, open, true
}

// formatTime renders t as RFC 3339 with its own offset.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// zoneName returns the zone abbreviation of t, falling back to the location name and then
// the numeric offset for unnamed zones.
func zoneName(t time.Time) string {
	if name, _ := t.Zone(); name != "" {
		return name
	}
	if loc := t.Location().String(); loc != "" && loc != "Local" {
		return loc
	}
	return t.Format("-07:00")
}

// parseTime accepts RFC 3339 timestamps with optional fractional seconds.
func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
}

// writeFileAtomic writes data to a temp file beside path, syncs it, and renames it over path.
func writeFileAtomic(path string, data []byte, rename func(oldPath, newPath string) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create journal temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = tmp.Chmod(journalFileMode); err != nil {
		return fmt.Errorf("chmod journal temp file: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write journal temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync journal temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close journal temp file: %w", err)
	}
	if err = rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace journal: %w", err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename. Best effort.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
