package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/storefinder/internal/repository"
	"github.com/google/uuid"
)

// fakeStore is an in-memory TxStore. InTx snapshots the location tables and
// restores them when fn fails.
type fakeStore struct {
	mu sync.Mutex

	locations    map[uuid.UUID]repository.Location
	order        []uuid.UUID
	links        map[uuid.UUID][]uuid.UUID
	serviceTypes map[uuid.UUID]repository.ServiceType
	translations []repository.Translation
	widget       *repository.WidgetConfig
	runs         []repository.ImportRun

	failCreate       map[string]bool // location names CreateLocation rejects
	errList          error
	errTranslations  error
	errRun           error
	txCalls          int
	postalCodeLookup [][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		locations:    map[uuid.UUID]repository.Location{},
		links:        map[uuid.UUID][]uuid.UUID{},
		serviceTypes: map[uuid.UUID]repository.ServiceType{},
		failCreate:   map[string]bool{},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeStore) InTx(ctx context.Context, fn func(Store) error) error {
	f.mu.Lock()
	f.txCalls++
	locs := make(map[uuid.UUID]repository.Location, len(f.locations))
	for k, v := range f.locations {
		locs[k] = v
	}
	order := append([]uuid.UUID(nil), f.order...)
	links := make(map[uuid.UUID][]uuid.UUID, len(f.links))
	for k, v := range f.links {
		links[k] = append([]uuid.UUID(nil), v...)
	}
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.locations, f.order, f.links = locs, order, links
		f.mu.Unlock()
		return err
	}
	return nil
}

// addLocation seeds a location and returns its id.
func (f *fakeStore) addLocation(l repository.Location) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = "aktiv"
	}
	if l.OpeningHoursType == "" {
		l.OpeningHoursType = "tagsueber"
	}
	f.locations[l.ID] = l
	f.order = append(f.order, l.ID)
	return l.ID
}

func (f *fakeStore) addServiceType(name string, sortOrder int32) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.serviceTypes[id] = repository.ServiceType{ID: id, Name: name, SortOrder: sortOrder}
	return id
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.locations)
}

func (f *fakeStore) get(id uuid.UUID) repository.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locations[id]
}

func (f *fakeStore) ordered() []repository.Location {
	out := make([]repository.Location, 0, len(f.order))
	for _, id := range f.order {
		if l, ok := f.locations[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// =============================================================================
// Locations
// =============================================================================

func (f *fakeStore) CreateLocation(ctx context.Context, arg repository.CreateLocationParams) (repository.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate[arg.Name] {
		return repository.Location{}, errors.New(`null value in column "name" violates not-null constraint`)
	}
	now := time.Now()
	l := repository.Location{
		ID:               uuid.New(),
		Name:             arg.Name,
		Street:           arg.Street,
		HouseNumber:      arg.HouseNumber,
		PostalCode:       arg.PostalCode,
		City:             arg.City,
		Country:          arg.Country,
		Phone:            arg.Phone,
		EmergencyPhone:   arg.EmergencyPhone,
		Email:            arg.Email,
		Website:          arg.Website,
		ImageUrl:         arg.ImageUrl,
		Latitude:         arg.Latitude,
		Longitude:        arg.Longitude,
		Status:           arg.Status,
		OpeningHoursType: arg.OpeningHoursType,
		OpeningHoursFrom: arg.OpeningHoursFrom,
		OpeningHoursTo:   arg.OpeningHoursTo,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.locations[l.ID] = l
	f.order = append(f.order, l.ID)
	return l, nil
}

func (f *fakeStore) GetLocationByID(ctx context.Context, id uuid.UUID) (repository.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locations[id]
	if !ok {
		return repository.Location{}, sql.ErrNoRows
	}
	return l, nil
}

func (f *fakeStore) DeleteLocation(ctx context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locations[id]; !ok {
		return 0, nil
	}
	delete(f.locations, id)
	delete(f.links, id)
	return 1, nil
}

func (f *fakeStore) UpdateLocationColumns(ctx context.Context, id uuid.UUID, cols []repository.ColumnValue) (repository.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locations[id]
	if !ok {
		return repository.Location{}, sql.ErrNoRows
	}
	for _, c := range cols {
		str := func() string { s, _ := c.Value.(string); return s }
		nstr := func() sql.NullString {
			if c.Value == nil {
				return sql.NullString{}
			}
			return sql.NullString{String: str(), Valid: true}
		}
		nfloat := func() sql.NullFloat64 {
			v, ok := c.Value.(float64)
			return sql.NullFloat64{Float64: v, Valid: ok}
		}
		switch c.Column {
		case "name":
			l.Name = str()
		case "street":
			l.Street = str()
		case "house_number":
			l.HouseNumber = str()
		case "postal_code":
			l.PostalCode = str()
		case "city":
			l.City = str()
		case "country":
			l.Country = str()
		case "phone":
			l.Phone = str()
		case "emergency_phone":
			l.EmergencyPhone = nstr()
		case "email":
			l.Email = nstr()
		case "website":
			l.Website = nstr()
		case "image_url":
			l.ImageUrl = nstr()
		case "latitude":
			l.Latitude = nfloat()
		case "longitude":
			l.Longitude = nfloat()
		case "status":
			l.Status = str()
		case "opening_hours_type":
			l.OpeningHoursType = str()
		case "opening_hours_from":
			l.OpeningHoursFrom = nstr()
		case "opening_hours_to":
			l.OpeningHoursTo = nstr()
		default:
			return repository.Location{}, errors.New("unknown column " + c.Column)
		}
	}
	l.UpdatedAt = time.Now()
	f.locations[id] = l
	return l, nil
}

func (f *fakeStore) ListLocationsByPostalCodes(ctx context.Context, postalCodes []string) ([]repository.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postalCodeLookup = append(f.postalCodeLookup, postalCodes)
	if f.errList != nil {
		return nil, f.errList
	}
	set := map[string]bool{}
	for _, pc := range postalCodes {
		set[pc] = true
	}
	var out []repository.Location
	for _, l := range f.ordered() {
		if set[l.PostalCode] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) filtered(search string, incomplete bool) []repository.Location {
	var out []repository.Location
	q := strings.ToLower(search)
	for _, l := range f.ordered() {
		if q != "" && !strings.Contains(strings.ToLower(l.Name+" "+l.PostalCode+" "+l.City), q) {
			continue
		}
		if incomplete && l.HouseNumber != "" && l.Latitude.Valid {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (f *fakeStore) SearchLocations(ctx context.Context, arg repository.SearchLocationsParams) ([]repository.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errList != nil {
		return nil, f.errList
	}
	all := f.filtered(arg.Search, arg.Incomplete)
	start := int(arg.Offset)
	if start > len(all) {
		start = len(all)
	}
	end := start + int(arg.Limit)
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (f *fakeStore) CountLocations(ctx context.Context, search string, incomplete bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errList != nil {
		return 0, f.errList
	}
	return int64(len(f.filtered(search, incomplete))), nil
}

func (f *fakeStore) ListMappedLocations(ctx context.Context, search string) ([]repository.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errList != nil {
		return nil, f.errList
	}
	var out []repository.Location
	for _, l := range f.ordered() {
		if l.Latitude.Valid && l.Longitude.Valid {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) SetLocationCoordinates(ctx context.Context, arg repository.SetLocationCoordinatesParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locations[arg.ID]
	if !ok {
		return 0, nil
	}
	l.Latitude = sql.NullFloat64{Float64: arg.Latitude, Valid: true}
	l.Longitude = sql.NullFloat64{Float64: arg.Longitude, Valid: true}
	f.locations[arg.ID] = l
	return 1, nil
}

func (f *fakeStore) SetLocationImage(ctx context.Context, arg repository.SetLocationImageParams) (repository.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locations[arg.ID]
	if !ok {
		return repository.Location{}, sql.ErrNoRows
	}
	l.ImageKey = arg.ImageKey
	l.ImageUrl = arg.ImageUrl
	f.locations[arg.ID] = l
	return l, nil
}

// =============================================================================
// Service types and translations
// =============================================================================

func (f *fakeStore) ListServiceTypes(ctx context.Context) ([]repository.ServiceType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]repository.ServiceType, 0, len(f.serviceTypes))
	for _, st := range f.serviceTypes {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (f *fakeStore) CreateServiceType(ctx context.Context, arg repository.CreateServiceTypeParams) (repository.ServiceType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := repository.ServiceType{ID: uuid.New(), Name: arg.Name, Icon: arg.Icon, SortOrder: arg.SortOrder}
	f.serviceTypes[st.ID] = st
	return st, nil
}

func (f *fakeStore) UpdateServiceType(ctx context.Context, arg repository.UpdateServiceTypeParams) (repository.ServiceType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.serviceTypes[arg.ID]; !ok {
		return repository.ServiceType{}, sql.ErrNoRows
	}
	st := repository.ServiceType{ID: arg.ID, Name: arg.Name, Icon: arg.Icon, SortOrder: arg.SortOrder}
	f.serviceTypes[arg.ID] = st
	return st, nil
}

func (f *fakeStore) DeleteServiceType(ctx context.Context, id uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.serviceTypes[id]; !ok {
		return 0, nil
	}
	delete(f.serviceTypes, id)
	return 1, nil
}

func (f *fakeStore) CountServiceTypesByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := f.serviceTypes[id]; ok {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListLocationServices(ctx context.Context, locationIDs []uuid.UUID) ([]repository.ListLocationServicesRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ListLocationServicesRow
	for _, lid := range locationIDs {
		for _, sid := range f.links[lid] {
			st := f.serviceTypes[sid]
			out = append(out, repository.ListLocationServicesRow{
				LocationID: lid,
				ID:         st.ID,
				Name:       st.Name,
				Icon:       st.Icon,
				SortOrder:  st.SortOrder,
			})
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteLocationServices(ctx context.Context, locationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, locationID)
	return nil
}

func (f *fakeStore) InsertLocationService(ctx context.Context, arg repository.InsertLocationServiceParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.serviceTypes[arg.ServiceTypeID]; !ok {
		return errors.New("violates foreign key constraint")
	}
	f.links[arg.LocationID] = append(f.links[arg.LocationID], arg.ServiceTypeID)
	return nil
}

func (f *fakeStore) ListTranslations(ctx context.Context, arg repository.ListTranslationsParams) ([]repository.Translation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errTranslations != nil {
		return nil, f.errTranslations
	}
	var out []repository.Translation
	for _, t := range f.translations {
		if t.TableName == arg.TableName && t.FieldName == arg.FieldName && t.Language == arg.Language {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertTranslation(ctx context.Context, arg repository.Translation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.translations {
		if t.TableName == arg.TableName && t.RowID == arg.RowID && t.FieldName == arg.FieldName && t.Language == arg.Language {
			f.translations[i].Value = arg.Value
			return nil
		}
	}
	f.translations = append(f.translations, arg)
	return nil
}

// =============================================================================
// Widget configuration and import history
// =============================================================================

func (f *fakeStore) GetWidgetConfig(ctx context.Context) (repository.WidgetConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.widget == nil {
		return repository.WidgetConfig{}, sql.ErrNoRows
	}
	return *f.widget, nil
}

func (f *fakeStore) UpsertWidgetConfig(ctx context.Context, arg repository.UpsertWidgetConfigParams) (repository.WidgetConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.widget = &repository.WidgetConfig{
		ID:               1,
		MapProvider:      arg.MapProvider,
		MapsApiKey:       arg.MapsApiKey,
		DefaultLanguage:  arg.DefaultLanguage,
		PrimaryColor:     arg.PrimaryColor,
		DefaultRadiusKm:  arg.DefaultRadiusKm,
		DefaultCenterLat: arg.DefaultCenterLat,
		DefaultCenterLng: arg.DefaultCenterLng,
		DefaultZoom:      arg.DefaultZoom,
		UpdatedAt:        time.Now(),
	}
	return *f.widget, nil
}

func (f *fakeStore) CreateImportRun(ctx context.Context, arg repository.CreateImportRunParams) (repository.ImportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errRun != nil {
		return repository.ImportRun{}, f.errRun
	}
	run := repository.ImportRun{
		ID:        uuid.New(),
		FileName:  arg.FileName,
		Total:     arg.Total,
		Created:   arg.Created,
		Updated:   arg.Updated,
		Skipped:   arg.Skipped,
		Failed:    arg.Failed,
		Errors:    arg.Errors,
		CreatedAt: time.Now(),
	}
	f.runs = append([]repository.ImportRun{run}, f.runs...)
	return run, nil
}

func (f *fakeStore) ListImportRuns(ctx context.Context, limit int32) ([]repository.ImportRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(limit) < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}
