package csvimport

import (
	"fmt"
	"strings"

	"github.com/DukeRupert/storefinder/internal/domain"
)

// BuildOperation converts a row that will be sent into its batch payload.
//
// Inserts carry every field; blanks take domain.InsertDefaults. Updates carry
// exactly the fields in mapped so an unmapped column never blanks existing
// data; blank enum values take domain.UpdateDefaults.
func BuildOperation(row ImportRow, mapped map[TargetField]bool, homeCountry string) (domain.ImportOperation, error) {
	switch {
	case row.Status == RowValid:
		return domain.ImportOperation{
			Action: domain.ImportInsert,
			Data:   insertPatch(row.Mapped, homeCountry),
		}, nil

	case row.Status == RowDuplicate && row.Action == ActionOverwrite:
		op := domain.ImportOperation{
			Action: domain.ImportUpdate,
			Data:   updatePatch(row.Mapped, mapped, homeCountry),
		}
		if row.Existing != nil {
			id := row.Existing.ID
			op.ExistingID = &id
		}
		return op, nil
	}
	return domain.ImportOperation{}, fmt.Errorf("row %d is not importable (status %s, action %s)", row.Line, row.Status, row.Action)
}

func insertPatch(r MappedRow, homeCountry string) domain.LocationPatch {
	p := domain.LocationPatch{
		Name:             domain.Some(r.Get(FieldName)),
		Street:           domain.Some(r.Get(FieldStreet)),
		HouseNumber:      domain.Some(r.Get(FieldHouseNumber)),
		PostalCode:       domain.Some(r.Get(FieldPostalCode)),
		City:             domain.Some(r.Get(FieldCity)),
		Country:          domain.Some(r.Get(FieldCountry)),
		Phone:            domain.Some(r.Get(FieldPhone)),
		EmergencyPhone:   domain.Some(r.Get(FieldEmergencyPhone)),
		Email:            domain.Some(r.Get(FieldEmail)),
		Website:          domain.Some(r.Get(FieldWebsite)),
		Status:           domain.Some(domain.LocationStatus(strings.ToLower(r.Get(FieldStatus)))),
		OpeningHoursType: domain.Some(domain.OpeningHoursType(strings.ToLower(r.Get(FieldOpeningHoursType)))),
		OpeningHoursFrom: domain.Some(r.Get(FieldOpeningHoursFrom)),
		OpeningHoursTo:   domain.Some(r.Get(FieldOpeningHoursTo)),
	}
	// Coordinates only travel as a complete pair.
	lat, latErr := parseNumber(r.Get(FieldLatitude))
	lng, lngErr := parseNumber(r.Get(FieldLongitude))
	if latErr == nil && lngErr == nil {
		p.Latitude = domain.Some(&lat)
		p.Longitude = domain.Some(&lng)
	}
	domain.InsertDefaults.ApplyPatch(&p, homeCountry)
	return p
}

func updatePatch(r MappedRow, mapped map[TargetField]bool, homeCountry string) domain.LocationPatch {
	var p domain.LocationPatch
	for f := range mapped {
		v := r.Get(f)
		switch f {
		case FieldName:
			p.Name = domain.Some(v)
		case FieldStreet:
			p.Street = domain.Some(v)
		case FieldHouseNumber:
			p.HouseNumber = domain.Some(v)
		case FieldPostalCode:
			p.PostalCode = domain.Some(v)
		case FieldCity:
			p.City = domain.Some(v)
		case FieldCountry:
			p.Country = domain.Some(v)
		case FieldPhone:
			p.Phone = domain.Some(v)
		case FieldEmergencyPhone:
			p.EmergencyPhone = domain.Some(v)
		case FieldEmail:
			p.Email = domain.Some(v)
		case FieldWebsite:
			p.Website = domain.Some(v)
		case FieldStatus:
			p.Status = domain.Some(domain.LocationStatus(strings.ToLower(v)))
		case FieldOpeningHoursType:
			p.OpeningHoursType = domain.Some(domain.OpeningHoursType(strings.ToLower(v)))
		case FieldOpeningHoursFrom:
			p.OpeningHoursFrom = domain.Some(v)
		case FieldOpeningHoursTo:
			p.OpeningHoursTo = domain.Some(v)
		case FieldLatitude:
			p.Latitude = domain.Some(optionalNumber(v))
		case FieldLongitude:
			p.Longitude = domain.Some(optionalNumber(v))
		}
	}
	domain.UpdateDefaults.ApplyPatch(&p, homeCountry)
	return p
}

func optionalNumber(s string) *float64 {
	f, err := parseNumber(s)
	if err != nil {
		return nil
	}
	return &f
}

// PatchFields returns the target fields present in p. It is the inverse of
// the update mapping and is used to audit update payloads.
func PatchFields(p domain.LocationPatch) map[TargetField]bool {
	set := map[TargetField]bool{}
	mark := func(f TargetField, ok bool) {
		if ok {
			set[f] = true
		}
	}
	mark(FieldName, p.Name.Set)
	mark(FieldStreet, p.Street.Set)
	mark(FieldHouseNumber, p.HouseNumber.Set)
	mark(FieldPostalCode, p.PostalCode.Set)
	mark(FieldCity, p.City.Set)
	mark(FieldCountry, p.Country.Set)
	mark(FieldPhone, p.Phone.Set)
	mark(FieldEmergencyPhone, p.EmergencyPhone.Set)
	mark(FieldEmail, p.Email.Set)
	mark(FieldWebsite, p.Website.Set)
	mark(FieldStatus, p.Status.Set)
	mark(FieldOpeningHoursType, p.OpeningHoursType.Set)
	mark(FieldOpeningHoursFrom, p.OpeningHoursFrom.Set)
	mark(FieldOpeningHoursTo, p.OpeningHoursTo.Set)
	mark(FieldLatitude, p.Latitude.Set)
	mark(FieldLongitude, p.Longitude.Set)
	return set
}
