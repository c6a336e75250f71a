package entity

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Fields holds raw JSON members keyed by name.
type Fields map[string]json.RawMessage

// FlexID keeps an id exactly as the catalog stored it, number or string.
type FlexID struct {
	raw json.RawMessage
}

func StringID(s string) FlexID {
	raw, _ := marshal(s)

	return FlexID{raw: raw}
}

func NumberID(n int64) FlexID {
	raw, _ := json.Marshal(n)

	return FlexID{raw: raw}
}

// String returns the textual form: the string itself or the number literal.
func (id FlexID) String() string {
	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}

	return string(bytes.TrimSpace(id.raw))
}

func (id FlexID) IsString() bool {
	trimmed := bytes.TrimSpace(id.raw)

	return len(trimmed) > 0 && trimmed[0] == '"'
}

// Matches compares by string representation, so 1 matches "1".
func (id FlexID) Matches(s string) bool {
	return len(id.raw) > 0 && id.String() == s
}

// Equals compares without coercion: only a string id can equal s.
func (id FlexID) Equals(s string) bool {
	return id.IsString() && id.String() == s
}

func (id FlexID) MarshalJSON() ([]byte, error) {
	if len(id.raw) == 0 {
		return []byte("null"), nil
	}

	return id.raw, nil
}

func (id *FlexID) UnmarshalJSON(data []byte) error {
	id.raw = append(json.RawMessage(nil), data...)

	return nil
}

type catalogJSON struct {
	Semesters []*Semester `json:"semesters"`
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	var v catalogJSON
	extra, err := decodeObject(data, &v, "semesters")
	if err != nil {
		return err
	}

	c.Semesters, c.Extra = v.Semesters, extra

	return nil
}

func (c *Catalog) MarshalJSON() ([]byte, error) {
	v := catalogJSON{Semesters: c.Semesters}
	if v.Semesters == nil {
		v.Semesters = []*Semester{}
	}

	return encodeObject(v, c.Extra)
}

type semesterJSON struct {
	ID       FlexID    `json:"id"`
	Branches []*Branch `json:"branches"`
}

func (s *Semester) UnmarshalJSON(data []byte) error {
	var v semesterJSON
	extra, err := decodeObject(data, &v, "id", "branches")
	if err != nil {
		return err
	}

	s.ID, s.Branches, s.Extra = v.ID, v.Branches, extra

	return nil
}

func (s *Semester) MarshalJSON() ([]byte, error) {
	v := semesterJSON{ID: s.ID, Branches: s.Branches}
	if v.Branches == nil {
		v.Branches = []*Branch{}
	}

	return encodeObject(v, s.Extra)
}

type branchJSON struct {
	ID       FlexID     `json:"id"`
	Subjects []*Subject `json:"subjects"`
}

func (b *Branch) UnmarshalJSON(data []byte) error {
	var v branchJSON
	extra, err := decodeObject(data, &v, "id", "subjects")
	if err != nil {
		return err
	}

	b.ID, b.Subjects, b.Extra = v.ID, v.Subjects, extra

	return nil
}

func (b *Branch) MarshalJSON() ([]byte, error) {
	v := branchJSON{ID: b.ID, Subjects: b.Subjects}
	if v.Subjects == nil {
		v.Subjects = []*Subject{}
	}

	return encodeObject(v, b.Extra)
}

type subjectJSON struct {
	ID        FlexID      `json:"id"`
	Name      string      `json:"name"`
	Materials []*Material `json:"materials"`
}

func (s *Subject) UnmarshalJSON(data []byte) error {
	var v subjectJSON
	extra, err := decodeObject(data, &v, "id", "name", "materials")
	if err != nil {
		return err
	}

	s.ID, s.Name, s.Materials, s.Extra = v.ID, v.Name, v.Materials, extra

	return nil
}

func (s *Subject) MarshalJSON() ([]byte, error) {
	v := subjectJSON{ID: s.ID, Name: s.Name, Materials: s.Materials}
	if v.Materials == nil {
		v.Materials = []*Material{}
	}

	return encodeObject(v, s.Extra)
}

type materialJSON struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DescriptionHTML string `json:"descriptionHtml,omitempty"`
	Path            string `json:"path"`
	Type            string `json:"type"`
	Size            string `json:"size"`
	UploadDate      string `json:"uploadDate"`
	DownloadURL     string `json:"downloadUrl"`
}

func (m *Material) UnmarshalJSON(data []byte) error {
	var v materialJSON
	extra, err := decodeObject(data, &v,
		"title", "description", "descriptionHtml", "path", "type", "size", "uploadDate", "downloadUrl")
	if err != nil {
		return err
	}

	*m = Material{
		Title:           v.Title,
		Description:     v.Description,
		DescriptionHTML: v.DescriptionHTML,
		Path:            v.Path,
		Type:            v.Type,
		Size:            v.Size,
		UploadDate:      v.UploadDate,
		DownloadURL:     v.DownloadURL,
		Extra:           extra,
	}

	return nil
}

func (m *Material) MarshalJSON() ([]byte, error) {
	return encodeObject(materialJSON{
		Title:           m.Title,
		Description:     m.Description,
		DescriptionHTML: m.DescriptionHTML,
		Path:            m.Path,
		Type:            m.Type,
		Size:            m.Size,
		UploadDate:      m.UploadDate,
		DownloadURL:     m.DownloadURL,
	}, m.Extra)
}

// decodeObject fills known and returns the members that are not listed in knownKeys.
func decodeObject(data []byte, known any, knownKeys ...string) (Fields, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	var all Fields
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}

	for _, key := range knownKeys {
		delete(all, key)
	}

	if len(all) == 0 {
		return nil, nil
	}

	return all, nil
}

// encodeObject writes the known members in declaration order followed by extra members sorted by name.
func encodeObject(known any, extra Fields) ([]byte, error) {
	data, err := marshal(known)
	if err != nil {
		return nil, err
	}

	if len(extra) == 0 {
		return data, nil
	}

	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buf := bytes.NewBuffer(data[:len(data)-1])
	for i, key := range keys {
		if i > 0 || len(data) > 2 {
			buf.WriteByte(',')
		}

		name, err := marshal(key)
		if err != nil {
			return nil, err
		}

		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[key])
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
