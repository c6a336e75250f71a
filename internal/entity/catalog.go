package entity

// Catalog is the whole semester → branch → subject → material tree stored in one JSON document.
type Catalog struct {
	Semesters []*Semester
	Extra     Fields // Keys this service does not know about, written back untouched
}

type Semester struct {
	ID       FlexID
	Branches []*Branch
	Extra    Fields
}

type Branch struct {
	ID       FlexID
	Subjects []*Subject
	Extra    Fields
}

type Subject struct {
	ID        FlexID
	Name      string
	Materials []*Material
	Extra     Fields
}

// Material is a single uploaded document registered under a subject.
type Material struct {
	Title           string
	Description     string
	DescriptionHTML string // Rendered Description, empty for materials created by other producers
	Path            string // Public path, e.g. /data/notes/semester-1/cse/ds/notes-01.pdf
	Type            string
	Size            string // Kilobytes rounded down, e.g. 2KB
	UploadDate      string // YYYY-MM-DD
	DownloadURL     string
	Extra           Fields
}

const MaterialTypePDF = "pdf"

// Materials returns every material of the catalog in document order.
func (c *Catalog) Materials() []*Material {
	var materials []*Material
	for _, semester := range c.Semesters {
		for _, branch := range semester.Branches {
			for _, subject := range branch.Subjects {
				materials = append(materials, subject.Materials...)
			}
		}
	}

	return materials
}

// MaterialPaths returns the set of material paths currently on record.
func (c *Catalog) MaterialPaths() []string {
	materials := c.Materials()
	paths := make([]string, 0, len(materials))
	for _, m := range materials {
		paths = append(paths, m.Path)
	}

	return paths
}
