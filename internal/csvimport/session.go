package csvimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/google/uuid"
)

// Stage is the wizard step a session is in.
type Stage string

const (
	StageUpload  Stage = "upload"
	StageMapping Stage = "mapping"
	StagePreview Stage = "preview"
	StageResult  Stage = "result"
)

// DuplicateChecker looks up existing locations by (name, postal code).
type DuplicateChecker interface {
	CheckDuplicates(ctx context.Context, candidates []domain.DuplicateCandidate) (map[string]domain.DuplicateMatch, error)
}

// BatchImporter commits a batch of insert and update operations.
type BatchImporter interface {
	Import(ctx context.Context, batch domain.ImportBatch) (*domain.ImportResult, error)
}

// GeocodeScheduler queues coordinate lookups for new locations.
type GeocodeScheduler interface {
	ScheduleGeocoding(ctx context.Context, targets []domain.GeocodeTarget) error
}

// Session is one run of the import wizard.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	stage    Stage
	file     *File
	mappings []Mapping
	rows     []ImportRow
	dupCheck bool // duplicate check failed; rows are provisionally new
	result   *domain.ImportResult

	committing atomic.Bool
	lastUsed   atomic.Int64
}

func newSession() *Session {
	s := &Session{ID: uuid.New(), stage: StageUpload}
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastUsed.Load()))
}

func (s *Session) isCommitting() bool {
	return s.committing.Load()
}

// Counts summarizes previewed rows.
type Counts struct {
	Total      int `json:"total"`
	Valid      int `json:"valid"`
	Warnings   int `json:"warnings"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Overwrite  int `json:"overwrite"`
	ToImport   int `json:"to_import"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID                   uuid.UUID            `json:"id"`
	Stage                Stage                `json:"stage"`
	Committing           bool                 `json:"committing"`
	File                 *File                `json:"file,omitempty"`
	Samples              map[string][]string  `json:"samples,omitempty"`
	Mappings             []Mapping            `json:"mappings,omitempty"`
	MissingRequired      []TargetField        `json:"missing_required,omitempty"`
	Rows                 []ImportRow          `json:"rows,omitempty"`
	Counts               Counts               `json:"counts"`
	DuplicateCheckFailed bool                 `json:"duplicate_check_failed,omitempty"`
	Result               *domain.ImportResult `json:"result,omitempty"`
}

// snapshot must be called with s.mu held.
func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		ID:                   s.ID,
		Stage:                s.stage,
		Committing:           s.isCommitting(),
		File:                 s.file,
		Mappings:             append([]Mapping(nil), s.mappings...),
		DuplicateCheckFailed: s.dupCheck,
		Result:               s.result,
	}
	if s.file != nil {
		snap.Samples = sampleValues(s.file, 3)
		snap.MissingRequired = MissingRequired(s.mappings)
	}
	if len(s.rows) > 0 {
		snap.Rows = append([]ImportRow(nil), s.rows...)
		snap.Counts = countRows(s.rows)
	}
	return snap
}

func sampleValues(f *File, n int) map[string][]string {
	out := make(map[string][]string, len(f.Headers))
	for _, h := range f.Headers {
		var vals []string
		for _, r := range f.Rows {
			if len(vals) == n {
				break
			}
			if v := r.Values[h]; v != "" {
				vals = append(vals, v)
			}
		}
		out[h] = vals
	}
	return out
}

func countRows(rows []ImportRow) Counts {
	c := Counts{Total: len(rows)}
	for i := range rows {
		r := &rows[i]
		switch r.Status {
		case RowValid:
			c.Valid++
		case RowDuplicate:
			c.Duplicates++
			if r.Action == ActionOverwrite {
				c.Overwrite++
			}
		case RowInvalid:
			c.Invalid++
		}
		if r.Status != RowInvalid && len(r.Warnings) > 0 {
			c.Warnings++
		}
		if r.WillBeSent() {
			c.ToImport++
		}
	}
	return c
}

// Orchestrator drives import sessions through their stages.
type Orchestrator struct {
	sessions    *SessionStore
	duplicates  DuplicateChecker
	importer    BatchImporter
	geocoding   GeocodeScheduler
	limits      Limits
	homeCountry string
	logger      *slog.Logger

	// enrichTimeout bounds the detached geocoding hand-off.
	enrichTimeout time.Duration
	enrichWG      sync.WaitGroup
}

// OrchestratorConfig holds the collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Sessions    *SessionStore
	Duplicates  DuplicateChecker
	Importer    BatchImporter
	Geocoding   GeocodeScheduler // optional
	Limits      Limits
	HomeCountry string
	Logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Limits.MaxBytes == 0 || cfg.Limits.MaxRows == 0 {
		cfg.Limits = DefaultLimits
	}
	if cfg.HomeCountry == "" {
		cfg.HomeCountry = "CH"
	}
	return &Orchestrator{
		sessions:      cfg.Sessions,
		duplicates:    cfg.Duplicates,
		importer:      cfg.Importer,
		geocoding:     cfg.Geocoding,
		limits:        cfg.Limits,
		homeCountry:   cfg.HomeCountry,
		logger:        cfg.Logger,
		enrichTimeout: 30 * time.Second,
	}
}

// Start parses an upload into a new session and moves it to the mapping
// stage with an automatic column mapping.
func (o *Orchestrator) Start(ctx context.Context, name string, r io.Reader, size int64) (*Snapshot, error) {
	sess := newSession()
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := o.load(sess, name, r, size); err != nil {
		return nil, err
	}
	o.sessions.Put(sess)
	o.logger.Info("import session started",
		"session_id", sess.ID,
		"file", sess.file.Name,
		"rows", len(sess.file.Rows),
		"split", sess.file.SplitNote != "",
	)
	return sess.snapshot(), nil
}

// Reupload replaces the file of a session that went back to the upload stage.
func (o *Orchestrator) Reupload(ctx context.Context, id uuid.UUID, name string, r io.Reader, size int64) (*Snapshot, error) {
	const op = "ImportOrchestrator.Reupload"

	sess, err := o.session(op, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage != StageUpload {
		return nil, stageError(op, sess.stage, StageUpload)
	}
	if err := o.load(sess, name, r, size); err != nil {
		return nil, err
	}
	return sess.snapshot(), nil
}

// load must be called with sess.mu held.
func (o *Orchestrator) load(sess *Session, name string, r io.Reader, size int64) error {
	file, err := Parse(name, r, size, o.limits)
	if err != nil {
		return err
	}
	sess.file = file
	sess.mappings = AutoMap(file.Headers)
	sess.rows = nil
	sess.result = nil
	sess.dupCheck = false
	sess.stage = StageMapping
	return nil
}

// Get returns the current state of a session.
func (o *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	sess, err := o.session("ImportOrchestrator.Get", id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// SetMappings replaces the column mapping of a session in the mapping stage.
func (o *Orchestrator) SetMappings(ctx context.Context, id uuid.UUID, mappings []Mapping) (*Snapshot, error) {
	const op = "ImportOrchestrator.SetMappings"

	sess, err := o.session(op, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage != StageMapping {
		return nil, stageError(op, sess.stage, StageMapping)
	}
	if err := CheckMappings(sess.file.Headers, mappings); err != nil {
		return nil, domain.Invalid(op, err.Error())
	}
	sess.mappings = append([]Mapping(nil), mappings...)
	return sess.snapshot(), nil
}

// Preview maps and validates every row, then checks valid rows for
// duplicates in one batch. If the duplicate check fails every valid row is
// treated as new.
func (o *Orchestrator) Preview(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	const op = "ImportOrchestrator.Preview"

	sess, err := o.session(op, id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.stage != StageMapping {
		return nil, stageError(op, sess.stage, StageMapping)
	}
	if missing := MissingRequired(sess.mappings); len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, f := range missing {
			labels[i] = Label(f)
		}
		return nil, domain.Invalid(op, "Required fields are not mapped: "+strings.Join(labels, ", "))
	}

	rows := make([]ImportRow, len(sess.file.Rows))
	var candidates []domain.DuplicateCandidate
	for i, raw := range sess.file.Rows {
		rows[i] = NewImportRow(raw, sess.mappings)
		if rows[i].Status == RowValid {
			candidates = append(candidates, rows[i].Mapped.Candidate())
		}
	}

	sess.dupCheck = false
	if len(candidates) > 0 {
		matches, err := o.duplicates.CheckDuplicates(ctx, candidates)
		if err != nil {
			o.logger.Warn("duplicate check failed, continuing without it",
				"error", err, "op", op, "session_id", sess.ID)
			sess.dupCheck = true
		} else {
			for i := range rows {
				if rows[i].Status != RowValid {
					continue
				}
				if m, ok := matches[rows[i].Mapped.Candidate().Key()]; ok {
					rows[i].MarkDuplicate(m)
				}
			}
		}
	}

	sess.rows = rows
	sess.stage = StagePreview
	return sess.snapshot(), nil
}

// SetAction sets the duplicate action of the row with the given line.
func (o *Orchestrator) SetAction(ctx context.Context, id uuid.UUID, line int, action DuplicateAction) (*Snapshot, error) {
	const op = "ImportOrchestrator.SetAction"
	snap, n, err := o.updateActions(op, id, action, func(r *ImportRow) bool { return r.Line == line })
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, domain.Invalid(op, "No matching duplicate row")
	}
	return snap, nil
}

// SetAllActions sets the action of every duplicate row. A preview without
// duplicates is returned unchanged.
func (o *Orchestrator) SetAllActions(ctx context.Context, id uuid.UUID, action DuplicateAction) (*Snapshot, error) {
	const op = "ImportOrchestrator.SetAllActions"
	snap, _, err := o.updateActions(op, id, action, func(*ImportRow) bool { return true })
	return snap, err
}

// updateActions applies action to the duplicate rows accepted by match and
// reports how many there were.
func (o *Orchestrator) updateActions(op string, id uuid.UUID, action DuplicateAction, match func(*ImportRow) bool) (*Snapshot, int, error) {
	if !action.IsValid() {
		return nil, 0, domain.Invalid(op, fmt.Sprintf("Invalid duplicate action %q", action))
	}
	sess, err := o.session(op, id)
	if err != nil {
		return nil, 0, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.isCommitting() {
		return nil, 0, domain.Conflict(op, "An import is in progress")
	}
	if sess.stage != StagePreview {
		return nil, 0, stageError(op, sess.stage, StagePreview)
	}
	n := 0
	for i := range sess.rows {
		r := &sess.rows[i]
		if r.Status == RowDuplicate && match(r) {
			r.Action = action
			n++
		}
	}
	return sess.snapshot(), n, nil
}

// Commit sends inserts and overwrites to the importer and moves the session
// to the result stage. Rows left on skip are counted, not sent. New rows
// without coordinates are handed to the geocoding scheduler in the
// background; that hand-off never affects the result.
func (o *Orchestrator) Commit(ctx context.Context, id uuid.UUID) (*domain.ImportResult, error) {
	const op = "ImportOrchestrator.Commit"

	sess, err := o.session(op, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.stage != StagePreview {
		sess.mu.Unlock()
		return nil, stageError(op, sess.stage, StagePreview)
	}
	if !sess.committing.CompareAndSwap(false, true) {
		sess.mu.Unlock()
		return nil, domain.Conflict(op, "An import is already in progress")
	}
	batch, err := o.buildBatch(sess)
	sess.mu.Unlock()
	defer sess.committing.Store(false)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to prepare import")
	}

	result := &domain.ImportResult{Errors: []domain.ImportFailure{}, Skipped: batch.Skipped}
	if len(batch.Operations) > 0 {
		result, err = o.importer.Import(ctx, batch)
		if err != nil {
			return nil, err
		}
	}

	sess.mu.Lock()
	sess.result = result
	sess.stage = StageResult
	sess.mu.Unlock()

	o.logger.Info("import committed",
		"session_id", sess.ID,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)

	if len(result.CreatedWithoutCoordinates) > 0 {
		o.scheduleEnrichment(ctx, result.CreatedWithoutCoordinates)
	}
	return result, nil
}

// buildBatch must be called with sess.mu held.
func (o *Orchestrator) buildBatch(sess *Session) (domain.ImportBatch, error) {
	batch := domain.ImportBatch{Source: sess.file.Name}
	mapped := MappedFields(sess.mappings)
	for _, r := range sess.rows {
		if r.Status == RowDuplicate && r.Action == ActionSkip {
			batch.Skipped++
			continue
		}
		if !r.WillBeSent() {
			continue
		}
		op, err := BuildOperation(r, mapped, o.homeCountry)
		if err != nil {
			return domain.ImportBatch{}, err
		}
		batch.Operations = append(batch.Operations, op)
	}
	return batch, nil
}

// scheduleEnrichment runs detached from the request: it outlives ctx's
// cancellation and only logs failures.
func (o *Orchestrator) scheduleEnrichment(ctx context.Context, targets []domain.GeocodeTarget) {
	if o.geocoding == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	o.enrichWG.Add(1)
	go func() {
		defer o.enrichWG.Done()
		ctx, cancel := context.WithTimeout(detached, o.enrichTimeout)
		defer cancel()
		if err := o.geocoding.ScheduleGeocoding(ctx, targets); err != nil {
			o.logger.Warn("failed to schedule geocoding for imported locations",
				"error", err, "count", len(targets))
		}
	}()
}

// Wait blocks until background enrichment hand-offs have finished.
func (o *Orchestrator) Wait() {
	o.enrichWG.Wait()
}

// Back moves a session one stage back: preview to mapping, mapping to
// upload. It is refused while a commit is running.
func (o *Orchestrator) Back(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	const op = "ImportOrchestrator.Back"

	sess, err := o.session(op, id)
	if err != nil {
		return nil, err
	}
	if sess.isCommitting() {
		return nil, domain.Conflict(op, "An import is in progress")
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.isCommitting() {
		return nil, domain.Conflict(op, "An import is in progress")
	}

	switch sess.stage {
	case StagePreview:
		sess.rows = nil
		sess.dupCheck = false
		sess.stage = StageMapping
	case StageMapping:
		sess.file = nil
		sess.mappings = nil
		sess.stage = StageUpload
	default:
		return nil, domain.Invalid(op, fmt.Sprintf("Cannot go back from the %s stage", sess.stage))
	}
	return sess.snapshot(), nil
}

// Discard drops a session. Running commits keep their session alive.
func (o *Orchestrator) Discard(ctx context.Context, id uuid.UUID) error {
	const op = "ImportOrchestrator.Discard"
	sess, err := o.session(op, id)
	if err != nil {
		return err
	}
	if sess.isCommitting() {
		return domain.Conflict(op, "An import is in progress")
	}
	o.sessions.Delete(id)
	return nil
}

func (o *Orchestrator) session(op string, id uuid.UUID) (*Session, error) {
	sess, ok := o.sessions.Get(id)
	if !ok {
		return nil, domain.NotFound(op, "import session", id.String())
	}
	return sess, nil
}

func stageError(op string, have, want Stage) error {
	return domain.Conflict(op, fmt.Sprintf("Import session is in the %s stage, expected %s", have, want))
}
