package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/DukeRupert/storefinder/internal/csvimport"
	"github.com/DukeRupert/storefinder/internal/domain"
	"github.com/DukeRupert/storefinder/internal/service"
	"github.com/DukeRupert/storefinder/internal/widget"
	"github.com/google/uuid"
)

func passThrough(next http.Handler) http.Handler { return next }

// serve routes req through a mux with the given registration.
func serve(register func(mux *http.ServeMux), req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// =============================================================================
// Location and image services
// =============================================================================

type fakeLocations struct {
	created  *domain.CreateLocationParams
	listed   *domain.ListLocationsParams
	patched  *domain.LocationPatch
	deleted  uuid.UUID
	location *domain.Location
	err      error
}

func (f *fakeLocations) Create(ctx context.Context, p domain.CreateLocationParams) (*domain.Location, error) {
	f.created = &p
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Location{ID: uuid.New(), Name: p.Name}, nil
}

func (f *fakeLocations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.location, nil
}

func (f *fakeLocations) List(ctx context.Context, p domain.ListLocationsParams) (*domain.LocationPage, error) {
	f.listed = &p
	if f.err != nil {
		return nil, f.err
	}
	page := domain.NewLocationPage(nil, 0, p.Page, p.Limit)
	return &page, nil
}

func (f *fakeLocations) Update(ctx context.Context, id uuid.UUID, patch domain.LocationPatch) (*domain.Location, error) {
	f.patched = &patch
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Location{ID: id}, nil
}

func (f *fakeLocations) Delete(ctx context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}

type fakeImages struct {
	filename string
	body     string
	err      error
}

func (f *fakeImages) Upload(ctx context.Context, id uuid.UUID, filename string, data io.Reader, size int64) (*domain.Location, error) {
	b, _ := io.ReadAll(data)
	f.filename, f.body = filename, string(b)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Location{ID: id, ImageURL: "http://localhost/files/x.jpg"}, nil
}

func (f *fakeImages) Delete(ctx context.Context, id uuid.UUID) (*domain.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Location{ID: id}, nil
}

// =============================================================================
// Import collaborators
// =============================================================================

type fakeWizard struct {
	calls    []string
	started  string
	mappings []csvimport.Mapping
	line     int
	action   csvimport.DuplicateAction
	ctxErr   error
	err      error
}

func (f *fakeWizard) snap(call string) (*csvimport.Snapshot, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return &csvimport.Snapshot{ID: uuid.New(), Stage: csvimport.StageMapping}, nil
}

func (f *fakeWizard) Start(ctx context.Context, name string, r io.Reader, size int64) (*csvimport.Snapshot, error) {
	b, _ := io.ReadAll(r)
	f.started = name + ":" + string(b)
	return f.snap("start")
}

func (f *fakeWizard) Reupload(ctx context.Context, id uuid.UUID, name string, r io.Reader, size int64) (*csvimport.Snapshot, error) {
	return f.snap("reupload")
}

func (f *fakeWizard) Get(ctx context.Context, id uuid.UUID) (*csvimport.Snapshot, error) {
	return f.snap("get")
}

func (f *fakeWizard) SetMappings(ctx context.Context, id uuid.UUID, m []csvimport.Mapping) (*csvimport.Snapshot, error) {
	f.mappings = m
	return f.snap("mappings")
}

func (f *fakeWizard) Preview(ctx context.Context, id uuid.UUID) (*csvimport.Snapshot, error) {
	return f.snap("preview")
}

func (f *fakeWizard) SetAction(ctx context.Context, id uuid.UUID, line int, a csvimport.DuplicateAction) (*csvimport.Snapshot, error) {
	f.line, f.action = line, a
	return f.snap("action")
}

func (f *fakeWizard) SetAllActions(ctx context.Context, id uuid.UUID, a csvimport.DuplicateAction) (*csvimport.Snapshot, error) {
	f.action = a
	return f.snap("actions")
}

func (f *fakeWizard) Commit(ctx context.Context, id uuid.UUID) (*domain.ImportResult, error) {
	f.calls = append(f.calls, "commit")
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ImportResult{Created: 1, Total: 1}, nil
}

func (f *fakeWizard) Back(ctx context.Context, id uuid.UUID) (*csvimport.Snapshot, error) {
	return f.snap("back")
}

func (f *fakeWizard) Discard(ctx context.Context, id uuid.UUID) error {
	f.calls = append(f.calls, "discard")
	return f.err
}

type fakeImports struct {
	batch  *domain.ImportBatch
	result *domain.ImportResult
	limit  int
	err    error
}

func (f *fakeImports) Import(ctx context.Context, b domain.ImportBatch) (*domain.ImportResult, error) {
	f.batch = &b
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeImports) ListRuns(ctx context.Context, limit int) ([]domain.ImportRun, error) {
	f.limit = limit
	return nil, f.err
}

type fakeDuplicates struct {
	got     []domain.DuplicateCandidate
	matches map[string]domain.DuplicateMatch
	err     error
}

func (f *fakeDuplicates) CheckDuplicates(ctx context.Context, c []domain.DuplicateCandidate) (map[string]domain.DuplicateMatch, error) {
	f.got = c
	return f.matches, f.err
}

type fakeGeocoding struct {
	coords    domain.Coordinates
	address   string
	scheduled []domain.GeocodeTarget
	err       error
}

func (f *fakeGeocoding) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	f.address = address
	return f.coords, f.err
}

func (f *fakeGeocoding) ScheduleGeocoding(ctx context.Context, targets []domain.GeocodeTarget) error {
	f.scheduled = append(f.scheduled, targets...)
	return f.err
}

// =============================================================================
// Widget service
// =============================================================================

type fakeWidgets struct {
	cfg     domain.WidgetConfig
	query   *service.FeedQuery
	session string
	from    domain.Coordinates
	saved   *domain.WidgetConfig
	err     error
}

func (f *fakeWidgets) Feed(ctx context.Context, q service.FeedQuery) (*service.Feed, error) {
	f.query = &q
	if f.err != nil {
		return nil, f.err
	}
	return &service.Feed{Language: q.Language, Locations: []widget.Match{}, Page: 1, Limit: q.Limit}, nil
}

func (f *fakeWidgets) Config(ctx context.Context) (domain.WidgetConfig, error) {
	return f.cfg, nil
}

func (f *fakeWidgets) SaveConfig(ctx context.Context, cfg domain.WidgetConfig) (domain.WidgetConfig, error) {
	f.saved = &cfg
	if f.err != nil {
		return domain.WidgetConfig{}, f.err
	}
	return cfg, nil
}

func (f *fakeWidgets) Route(ctx context.Context, session string, from domain.Coordinates) (*service.RouteResult, error) {
	f.session, f.from = session, from
	if f.err != nil {
		return nil, f.err
	}
	return &service.RouteResult{DistanceKm: 1.5}, nil
}

func (f *fakeWidgets) Snippet(opts widget.EmbedOptions) string {
	return widget.Snippet("https://finder.example.ch", opts)
}

var (
	_ service.LocationService  = (*fakeLocations)(nil)
	_ service.ImageService     = (*fakeImages)(nil)
	_ ImportWizard             = (*fakeWizard)(nil)
	_ service.ImportService    = (*fakeImports)(nil)
	_ service.DuplicateService = (*fakeDuplicates)(nil)
	_ service.GeocodingService = (*fakeGeocoding)(nil)
	_ service.WidgetService    = (*fakeWidgets)(nil)
)

func contextWithCancel(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithCancel(r.Context())
}
