package render

// Spacing classes emitted on block wrappers.
const (
	ClassSpaceTop      = "space-top"
	ClassSpaceBottom   = "space-bottom"
	ClassSectionPadded = "section-pad-bottom"
)

// Sibling describes one entry of a content array for spacing purposes.
type Sibling struct {
	Section bool
	Hidden  bool
}

// Spacing is the computed spacing of one block.
type Spacing struct {
	Top           bool
	Bottom        bool
	PaddingBottom bool
}

// Classes returns the CSS classes for s in a stable order.
func (s Spacing) Classes() []string {
	var out []string
	if s.Top {
		out = append(out, ClassSpaceTop)
	}
	if s.Bottom {
		out = append(out, ClassSpaceBottom)
	}
	if s.PaddingBottom {
		out = append(out, ClassSectionPadded)
	}
	return out
}

// ComputeSpacing returns the spacing of every sibling at the given nesting
// level. Hidden entries get no spacing and are ignored when looking at
// neighbours.
func ComputeSpacing(siblings []Sibling, level int) []Spacing {
	out := make([]Spacing, len(siblings))

	visible := make([]int, 0, len(siblings))
	for i, s := range siblings {
		if !s.Hidden {
			visible = append(visible, i)
		}
	}

	lastSection := -1
	for v := len(visible) - 1; v >= 0; v-- {
		if siblings[visible[v]].Section {
			lastSection = v
			break
		}
	}

	for v, i := range visible {
		cur := siblings[i]
		hasPrev := v > 0
		hasNext := v < len(visible)-1

		var sp Spacing
		if !cur.Section {
			sp.Bottom = hasNext
			out[i] = sp
			continue
		}

		if hasPrev && !siblings[visible[v-1]].Section {
			sp.Top = true
		}
		if level > 0 && hasPrev {
			sp.Top = true
			if hasNext && !siblings[visible[v+1]].Section {
				sp.Bottom = true
			}
		}
		if v == lastSection {
			// At the root, padding is dropped when content trails the last section.
			sp.PaddingBottom = level > 0 || !hasNext
		}
		out[i] = sp
	}
	return out
}
