package slicing

import (
	"sort"
	"strings"
)

// keepPreference is, per target scale, the order in which a present
// tag is chosen to be kept
var keepPreference = map[Scale][]Scale{
	Scale1x: {Scale1x, Scale2x, Scale3x},
	Scale2x: {Scale2x, Scale3x, Scale1x},
	Scale3x: {Scale3x, Scale2x, Scale1x},
}

// ResourceGroup is every file of one directory that shares a base name
// once the scale tag is stripped
type ResourceGroup struct {
	Base  string
	Ext   string
	Files map[Scale]string
}

// Filename reconstructs a member's name from base, tag and extension
func (g *ResourceGroup) Filename(s Scale) string {
	return g.Base + s.Suffix() + g.Ext
}

// Tags returns the scales present in the group, ascending
func (g *ResourceGroup) Tags() []Scale {
	tags := make([]Scale, 0, len(g.Files))
	for s := range g.Files {
		tags = append(tags, s)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// ParseResourceName splits "Icon@2x.png" into ("Icon", 2x, ".png").
// A name without @2x or @3x before its extension is 1x.
func ParseResourceName(name string) (base string, scale Scale, ext string) {
	ext = fileExtension(name)
	stem := strings.TrimSuffix(name, ext)
	switch {
	case strings.HasSuffix(stem, "@2x"):
		return strings.TrimSuffix(stem, "@2x"), Scale2x, ext
	case strings.HasSuffix(stem, "@3x"):
		return strings.TrimSuffix(stem, "@3x"), Scale3x, ext
	default:
		return stem, Scale1x, ext
	}
}

// GroupResources groups file names by base name and extension, in
// first-seen order
func GroupResources(names []string) []*ResourceGroup {
	var groups []*ResourceGroup
	index := make(map[string]*ResourceGroup)

	for _, name := range names {
		base, scale, ext := ParseResourceName(name)
		key := base + "\x00" + strings.ToLower(ext)

		g, ok := index[key]
		if !ok {
			g = &ResourceGroup{Base: base, Ext: ext, Files: make(map[Scale]string)}
			index[key] = g
			groups = append(groups, g)
		}
		if _, dup := g.Files[scale]; !dup {
			g.Files[scale] = name
		}
	}

	return groups
}

// Select returns the tags of group to remove for target: every present
// tag except the first one found in target's keep-preference order.
// A group with fewer than two tags loses nothing.
func Select(group *ResourceGroup, target Scale) []Scale {
	if len(group.Files) < 2 {
		return nil
	}

	var keep Scale
	for _, s := range keepPreference[target] {
		if _, ok := group.Files[s]; ok {
			keep = s
			break
		}
	}
	if keep == 0 {
		return nil
	}

	var remove []Scale
	for _, s := range group.Tags() {
		if s != keep {
			remove = append(remove, s)
		}
	}
	return remove
}

// SelectRemovals returns the file names among names that target does
// not need
func SelectRemovals(names []string, target Scale) []string {
	var removals []string
	for _, g := range GroupResources(names) {
		for _, s := range Select(g, target) {
			removals = append(removals, g.Files[s])
		}
	}
	return removals
}
