// Package category groups courses into an ordered, nested catalog.
package category

import (
	"errors"
	"time"
)

var ErrSlugTaken = errors.New("category slug already exists")

type Category struct {
	ID          string    `json:"id" db:"category_id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description" db:"description"`
	ParentID    *string   `json:"parentId,omitempty" db:"parent_id"`
	SortOrder   int       `json:"sortOrder" db:"sort_order"`
	Active      bool      `json:"isActive" db:"is_active"`
	CourseCount int       `json:"courseCount" db:"course_count"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type CategoryNew struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Slug        string  `json:"slug" validate:"required,max=120"`
	Description string  `json:"description"`
	ParentID    *string `json:"parentId" validate:"omitempty,uuid"`
	SortOrder   int     `json:"sortOrder"`
}

// Node is a category with its children attached.
type Node struct {
	Category
	Children []Node `json:"children"`
}

type Listing struct {
	Categories []Node     `json:"categories"`
	Flat       []Category `json:"flat"`
}

// Tree nests categories under their parents, keeping the input order among
// siblings. Categories whose parent is not in the list become roots.
func Tree(cats []Category) []Node {
	known := make(map[string]bool, len(cats))
	for _, c := range cats {
		known[c.ID] = true
	}

	children := make(map[string][]Category)
	var roots []Category
	for _, c := range cats {
		if c.ParentID != nil && known[*c.ParentID] && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}

	visited := make(map[string]bool, len(cats))
	var build func(cs []Category) []Node
	build = func(cs []Category) []Node {
		nodes := []Node{}
		for _, c := range cs {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			nodes = append(nodes, Node{Category: c, Children: build(children[c.ID])})
		}
		return nodes
	}

	return build(roots)
}
