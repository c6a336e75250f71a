package output

import (
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/jgivc/notehub/internal/entity"
)

// CatalogTree renders the semester → branch → subject → material hierarchy.
func CatalogTree(c *entity.Catalog, rootLabel string) string {
	tree := gotree.New(rootLabel)

	for _, semester := range c.Semesters {
		sn := tree.Add("semester-" + semester.ID.String())

		for _, branch := range semester.Branches {
			bn := sn.Add(branch.ID.String())

			for _, subject := range branch.Subjects {
				label := subject.ID.String()
				if subject.Name != "" {
					label = fmt.Sprintf("%s (%s)", label, subject.Name)
				}

				subn := bn.Add(label)
				for _, m := range subject.Materials {
					subn.Add(fmt.Sprintf("%s [%s, %s] %s", m.Title, m.Size, m.UploadDate, m.Path))
				}
			}
		}
	}

	return tree.Print()
}
