// Package library filters and orders the document list for display.
package library

import (
	"fmt"
	"sort"
	"strings"

	"naskah/internal/client/mutator"
	"naskah/internal/document/model"
)

type SortField string

const (
	SortTitle     SortField = "title"
	SortUpdatedAt SortField = "updatedAt"
	SortVersion   SortField = "version"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(s); f {
	case SortTitle, SortUpdatedAt, SortVersion:
		return f, nil
	}
	return "", fmt.Errorf("unknown sort field %q (want title, updatedAt or version)", s)
}

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Asc, Desc:
		return d, nil
	}
	return "", fmt.Errorf("unknown sort order %q (want asc or desc)", s)
}

// View is a title search plus an ordering. The zero value shows everything by
// title ascending.
type View struct {
	Query     string
	Field     SortField
	Direction Direction
}

// Toggle picks field the way the sort menu does: the current field flips
// direction, any other field starts ascending.
func (v View) Toggle(field SortField) View {
	if field == v.field() {
		v.Field = field
		if v.direction() == Asc {
			v.Direction = Desc
		} else {
			v.Direction = Asc
		}
		return v
	}
	v.Field = field
	v.Direction = Asc
	return v
}

// Apply returns the matching documents in order. docs is not modified.
func (v View) Apply(docs []model.Document) []model.Document {
	q := strings.ToLower(strings.TrimSpace(v.Query))
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if q == "" || strings.Contains(strings.ToLower(DisplayTitle(d)), q) {
			out = append(out, d)
		}
	}

	less := v.less()
	sort.SliceStable(out, func(i, j int) bool {
		if v.direction() == Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// DisplayTitle is the title, or the default title when it is blank.
func DisplayTitle(d model.Document) string {
	if strings.TrimSpace(d.Title) == "" {
		return mutator.DefaultTitle
	}
	return d.Title
}

func (v View) less() func(a, b model.Document) bool {
	switch v.field() {
	case SortUpdatedAt:
		return func(a, b model.Document) bool { return a.Metadata.UpdatedAt.Before(b.Metadata.UpdatedAt) }
	case SortVersion:
		return func(a, b model.Document) bool { return a.Metadata.Version < b.Metadata.Version }
	default:
		return func(a, b model.Document) bool {
			return strings.ToLower(DisplayTitle(a)) < strings.ToLower(DisplayTitle(b))
		}
	}
}

func (v View) field() SortField {
	if v.Field == "" {
		return SortTitle
	}
	return v.Field
}

func (v View) direction() Direction {
	if v.Direction == "" {
		return Asc
	}
	return v.Direction
}
