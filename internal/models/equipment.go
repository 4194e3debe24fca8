package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Location-bearing metadata field names, in the order they are reported.
const (
	FieldAddressFormatted = "address_formatted"
	FieldAddressCity      = "address_city"
	FieldAddressState     = "address_state"
	FieldAddressCountry   = "address_country"
	FieldBuildingName     = "building_name"
	FieldFacilityName     = "facility_name"
	FieldBranchName       = "branch_name"
	FieldRegionName       = "region_name"
	FieldCompanyName      = "company_name"
)

// LocationFieldNames lists every field that can carry location information.
var LocationFieldNames = []string{
	FieldAddressFormatted, FieldAddressCity, FieldAddressState, FieldAddressCountry,
	FieldBuildingName, FieldFacilityName, FieldBranchName, FieldRegionName, FieldCompanyName,
}

// DirectAddressFieldNames is the subset of LocationFieldNames that states a physical address.
var DirectAddressFieldNames = []string{
	FieldAddressFormatted, FieldAddressCity, FieldAddressState, FieldAddressCountry,
}

// EquipmentMetadata is the static descriptive record of one piece of equipment.
// All fields are optional; blank strings mean "not provided". Scalar fields accept JSON
// strings, numbers or booleans. Keys without a named field are kept in Extra.
type EquipmentMetadata struct {
	EquipmentID   string `json:"equipment_id"`
	EquipmentName string `json:"equipment_name,omitempty"`
	EquipmentType string `json:"equipment_type,omitempty"`
	Manufacturer  string `json:"manufacturer,omitempty"`
	Model         string `json:"model,omitempty"`
	SerialNumber  string `json:"serial_number,omitempty"`

	AddressFormatted    string   `json:"address_formatted,omitempty"`
	AddressCity         string   `json:"address_city,omitempty"`
	AddressState        string   `json:"address_state,omitempty"`
	AddressCountry      string   `json:"address_country,omitempty"`
	AddressStreet       string   `json:"address_street,omitempty"`
	AddressStreetNumber string   `json:"address_street_number,omitempty"`
	AddressZipCode      string   `json:"address_zip_code,omitempty"`
	LocationLat         *float64 `json:"location_lat,omitempty"`
	LocationLng         *float64 `json:"location_lng,omitempty"`

	BuildingName          string `json:"building_name,omitempty"`
	BuildingID            string `json:"building_id,omitempty"`
	FacilityName          string `json:"facility_name,omitempty"`
	BranchName            string `json:"branch_name,omitempty"`
	RegionName            string `json:"region_name,omitempty"`
	CompanyName           string `json:"company_name,omitempty"`
	BuildingParentName    string `json:"building_parent_name,omitempty"`
	CountryNameByLocation string `json:"country_name_by_location,omitempty"`

	InstallationDate          string   `json:"installation_date,omitempty"`
	OperationalStatus         string   `json:"operational_status,omitempty"`
	PowerRating               string   `json:"power_rating,omitempty"`
	OperatingTemperatureRange string   `json:"operating_temperature_range,omitempty"`
	LastMaintenance           string   `json:"last_maintenance,omitempty"`
	Notes                     string   `json:"notes,omitempty"`
	MetadataTags              []string `json:"metadata_tags,omitempty"`

	Extra map[string]any `json:"-"`
}

// Field returns the trimmed value of a location-bearing field by name, or "" for unknown names.
func (m EquipmentMetadata) Field(name string) string {
	var v string
	switch name {
	case FieldAddressFormatted:
		v = m.AddressFormatted
	case FieldAddressCity:
		v = m.AddressCity
	case FieldAddressState:
		v = m.AddressState
	case FieldAddressCountry:
		v = m.AddressCountry
	case FieldBuildingName:
		v = m.BuildingName
	case FieldFacilityName:
		v = m.FacilityName
	case FieldBranchName:
		v = m.BranchName
	case FieldRegionName:
		v = m.RegionName
	case FieldCompanyName:
		v = m.CompanyName
	}
	return strings.TrimSpace(v)
}

// AvailableLocationFields returns the names of populated location-bearing fields.
func (m EquipmentMetadata) AvailableLocationFields() []string {
	var out []string
	for _, name := range LocationFieldNames {
		if m.Field(name) != "" {
			out = append(out, name)
		}
	}
	return out
}

// HasDirectAddress reports whether any physical address field is populated.
func (m EquipmentMetadata) HasDirectAddress() bool {
	for _, name := range DirectAddressFieldNames {
		if m.Field(name) != "" {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the record carries no information at all.
func (m EquipmentMetadata) IsEmpty() bool {
	return m.EquipmentID == "" && len(m.AvailableLocationFields()) == 0 &&
		m.EquipmentName == "" && m.EquipmentType == "" && m.LocationLat == nil && m.LocationLng == nil
}

// LocationSummary renders the populated location fields as "field: value; ...".
func (m EquipmentMetadata) LocationSummary() string {
	if m.IsEmpty() {
		return "No metadata available"
	}
	var parts []string
	for _, name := range LocationFieldNames {
		if v := m.Field(name); v != "" {
			parts = append(parts, name+": "+v)
		}
	}
	if len(parts) == 0 {
		return "No location information available in metadata"
	}
	return strings.Join(parts, "; ")
}

func (m *EquipmentMetadata) stringField(key string) *string {
	switch key {
	case "equipment_id":
		return &m.EquipmentID
	case "equipment_name":
		return &m.EquipmentName
	case "equipment_type":
		return &m.EquipmentType
	case "manufacturer":
		return &m.Manufacturer
	case "model":
		return &m.Model
	case "serial_number":
		return &m.SerialNumber
	case FieldAddressFormatted:
		return &m.AddressFormatted
	case FieldAddressCity:
		return &m.AddressCity
	case FieldAddressState:
		return &m.AddressState
	case FieldAddressCountry:
		return &m.AddressCountry
	case "address_street":
		return &m.AddressStreet
	case "address_street_number":
		return &m.AddressStreetNumber
	case "address_zip_code":
		return &m.AddressZipCode
	case FieldBuildingName:
		return &m.BuildingName
	case "building_id":
		return &m.BuildingID
	case FieldFacilityName:
		return &m.FacilityName
	case FieldBranchName:
		return &m.BranchName
	case FieldRegionName:
		return &m.RegionName
	case FieldCompanyName:
		return &m.CompanyName
	case "building_parent_name":
		return &m.BuildingParentName
	case "country_name_by_location":
		return &m.CountryNameByLocation
	case "installation_date":
		return &m.InstallationDate
	case "operational_status":
		return &m.OperationalStatus
	case "power_rating":
		return &m.PowerRating
	case "operating_temperature_range":
		return &m.OperatingTemperatureRange
	case "last_maintenance":
		return &m.LastMaintenance
	case "notes":
		return &m.Notes
	}
	return nil
}

// UnmarshalJSON decodes a dataset record. Numbers in scalar fields keep their JSON text.
func (m *EquipmentMetadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*m = EquipmentMetadata{}
	for key, v := range raw {
		if v == nil {
			continue
		}
		if dst := m.stringField(key); dst != nil {
			s, err := scalarString(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = s
			continue
		}
		switch key {
		case "location_lat", "location_lng":
			f, err := scalarFloat(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			if key == "location_lat" {
				m.LocationLat = f
			} else {
				m.LocationLng = f
			}
		case "metadata_tags":
			tags, err := stringList(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			m.MetadataTags = tags
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]any)
			}
			m.Extra[key] = v
		}
	}
	return nil
}

// MarshalJSON writes the named fields followed by Extra in key order.
func (m EquipmentMetadata) MarshalJSON() ([]byte, error) {
	type plain EquipmentMetadata
	b, err := json.Marshal(plain(m))
	if err != nil || len(m.Extra) == 0 {
		return b, err
	}

	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(b[:len(b)-1])
	for _, k := range keys {
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(m.Extra[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("expected a string or number, got %T", v)
}

func scalarFloat(v any) (*float64, error) {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
	default:
		return nil, fmt.Errorf("expected a number, got %T", v)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func stringList(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := scalarString(item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
