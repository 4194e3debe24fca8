// Package equipment provides read-only lookup of equipment metadata from a static dataset.
package equipment

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"sort"
	"strings"

	"github.com/kjstillabower/ambient-temp-service/internal/models"
	"github.com/kjstillabower/ambient-temp-service/internal/validation"
)

//go:embed dataset.json
var embeddedDataset []byte

var (
	// ErrNotFound is returned when an equipment identifier is unknown.
	ErrNotFound = errors.New("equipment not found")
	// ErrDatasetInvalid is returned when the dataset cannot be parsed.
	ErrDatasetInvalid = errors.New("invalid equipment dataset")
)

// MetadataNotFoundError reports an unknown equipment identifier.
type MetadataNotFoundError struct {
	EquipmentID string
}

func (e *MetadataNotFoundError) Error() string {
	return fmt.Sprintf("no metadata found for equipment %s", e.EquipmentID)
}

// Is makes errors.Is(err, ErrNotFound) true.
func (e *MetadataNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Store is an immutable, in-memory index of equipment metadata keyed by identifier.
type Store struct {
	records  map[string]models.EquipmentMetadata
	ids      []string
	rejected []string
}

// Load reads the dataset at path. An empty path loads the embedded synthetic dataset.
func Load(path string) (*Store, error) {
	data := embeddedDataset
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("equipment dataset not found at %s", path)
			}
			return nil, fmt.Errorf("read equipment dataset: %w", err)
		}
		data = b
	}
	records, err := parseDataset(data)
	if err != nil {
		return nil, err
	}
	return NewStore(records), nil
}

// NewStore indexes records by EquipmentID. Records without an identifier are skipped;
// identifiers that ValidateEquipmentID would refuse are skipped and reported by Rejected.
// Later duplicates replace earlier ones.
func NewStore(records []models.EquipmentMetadata) *Store {
	s := &Store{records: make(map[string]models.EquipmentMetadata, len(records))}
	for _, r := range records {
		if strings.TrimSpace(r.EquipmentID) == "" {
			continue
		}
		id, err := validation.ValidateEquipmentID(r.EquipmentID)
		if err != nil {
			s.rejected = append(s.rejected, r.EquipmentID)
			continue
		}
		r.EquipmentID = id
		s.records[id] = r
	}
	s.ids = make([]string, 0, len(s.records))
	for id := range s.records {
		s.ids = append(s.ids, id)
	}
	sort.Strings(s.ids)
	sort.Strings(s.rejected)
	return s
}

// Rejected returns dataset identifiers that were dropped because they cannot be queried.
func (s *Store) Rejected() []string {
	return append([]string(nil), s.rejected...)
}

// parseDataset accepts either {"equipment_database": [...]} or an object keyed by identifier.
func parseDataset(data []byte) ([]models.EquipmentMetadata, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetInvalid, err)
	}

	if raw, ok := top["equipment_database"]; ok {
		var list []models.EquipmentMetadata
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: equipment_database: %v", ErrDatasetInvalid, err)
		}
		return list, nil
	}

	records := make([]models.EquipmentMetadata, 0, len(top))
	for id, raw := range top {
		var md models.EquipmentMetadata
		if err := json.Unmarshal(raw, &md); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrDatasetInvalid, id, err)
		}
		if md.EquipmentID == "" {
			md.EquipmentID = id
		}
		records = append(records, md)
	}
	return records, nil
}

// Lookup returns the metadata for id or a *MetadataNotFoundError.
func (s *Store) Lookup(id string) (models.EquipmentMetadata, error) {
	md, ok := s.records[strings.TrimSpace(id)]
	if !ok {
		return models.EquipmentMetadata{}, &MetadataNotFoundError{EquipmentID: id}
	}
	md.MetadataTags = append([]string(nil), md.MetadataTags...)
	md.Extra = maps.Clone(md.Extra)
	return md, nil
}

// List returns all identifiers in sorted order.
func (s *Store) List() []string {
	return append([]string(nil), s.ids...)
}

// Count returns the number of records.
func (s *Store) Count() int {
	return len(s.ids)
}

// Info returns a one-line description: "{id}: {name} ({type}) - {city or facility}".
func (s *Store) Info(id string) string {
	md, err := s.Lookup(id)
	if err != nil {
		return fmt.Sprintf("%s: Equipment not found", id)
	}
	name := firstNonEmpty(md.EquipmentName, "Unknown Equipment")
	eqType := firstNonEmpty(md.EquipmentType, "Unknown Type")
	loc := firstNonEmpty(md.AddressCity, md.FacilityName, "Unknown Location")
	return fmt.Sprintf("%s: %s (%s) - %s", md.EquipmentID, name, eqType, loc)
}

// SearchByType returns records whose equipment type matches case-insensitively.
func (s *Store) SearchByType(equipmentType string) []models.EquipmentMetadata {
	var out []models.EquipmentMetadata
	for _, id := range s.ids {
		md := s.records[id]
		if strings.EqualFold(md.EquipmentType, equipmentType) {
			out = append(out, md)
		}
	}
	return out
}

// SearchByLocation returns records whose city and country contain the given
// substrings case-insensitively. Empty arguments match everything.
func (s *Store) SearchByLocation(city, country string) []models.EquipmentMetadata {
	city, country = strings.ToLower(city), strings.ToLower(country)
	var out []models.EquipmentMetadata
	for _, id := range s.ids {
		md := s.records[id]
		if city != "" && !strings.Contains(strings.ToLower(md.AddressCity), city) {
			continue
		}
		if country != "" && !strings.Contains(strings.ToLower(md.AddressCountry), country) {
			continue
		}
		out = append(out, md)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
