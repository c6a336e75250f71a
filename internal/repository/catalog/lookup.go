package catalog

import (
	"fmt"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/entity"
)

// FindSubject walks semester, branch and subject in that order and reports the first missing level.
// Semester ids match by string form (1 == "1"); branch and subject ids must be equal strings.
func FindSubject(c *entity.Catalog, semesterID, branchID, subjectID string) (*entity.Subject, error) {
	var semester *entity.Semester
	for _, s := range c.Semesters {
		if s.ID.Matches(semesterID) {
			semester = s

			break
		}
	}

	if semester == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrSemesterNotFound, semesterID)
	}

	var branch *entity.Branch
	for _, b := range semester.Branches {
		if b.ID.Equals(branchID) {
			branch = b

			break
		}
	}

	if branch == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrBranchNotFound, branchID)
	}

	for _, subject := range branch.Subjects {
		if subject.ID.Equals(subjectID) {
			return subject, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", common.ErrSubjectNotFound, subjectID)
}

// FindMaterial returns the first material stored at path together with its subject.
func FindMaterial(c *entity.Catalog, path string) (*entity.Subject, *entity.Material, error) {
	for _, semester := range c.Semesters {
		for _, branch := range semester.Branches {
			for _, subject := range branch.Subjects {
				for _, m := range subject.Materials {
					if m.Path == path {
						return subject, m, nil
					}
				}
			}
		}
	}

	return nil, nil, fmt.Errorf("%w: %s", common.ErrMaterialNotFound, path)
}

// AppendMaterial adds m to the end of the subject materials. Duplicates are allowed.
func AppendMaterial(subject *entity.Subject, m *entity.Material) {
	subject.Materials = append(subject.Materials, m)
}

// RemoveMaterial drops every material of the subject stored at path and returns how many were removed.
func RemoveMaterial(subject *entity.Subject, path string) int {
	kept := subject.Materials[:0]
	removed := 0
	for _, m := range subject.Materials {
		if m.Path == path {
			removed++

			continue
		}
		kept = append(kept, m)
	}

	for i := len(kept); i < len(subject.Materials); i++ {
		subject.Materials[i] = nil
	}
	subject.Materials = kept

	return removed
}
