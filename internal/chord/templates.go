// SPDX-License-Identifier: MIT

// Package chord matches pitch-class profiles against chord templates and
// turns the per-tick estimates into display decisions.
package chord

import (
	"fmt"
	"strings"

	"chordscope/internal/analysis"
	"chordscope/internal/fault"

	"gonum.org/v1/gonum/floats"
)

// Quality identifies a chord type independent of its root.
type Quality int

const (
	Major Quality = iota
	Minor
	Diminished
	Augmented
	Sus2
	Sus4
	Dominant7
	Major7
	Minor7
	Power
)

// QualitySpec is one row of the template table: the intervals (semitones
// above the root) that a chord of this quality sounds.
type QualitySpec struct {
	Quality   Quality
	Name      string // Used in labels, e.g. "C major".
	Aliases   []string
	Intervals []int
}

// Tones returns the number of distinct pitch classes the quality requires.
func (q QualitySpec) Tones() int {
	return len(q.Intervals)
}

// qualityTable is process-wide, read-only template data. Adding a quality
// means adding a row here.
var qualityTable = []QualitySpec{
	{Major, "major", []string{"maj", "M"}, []int{0, 4, 7}},
	{Minor, "minor", []string{"min", "m"}, []int{0, 3, 7}},
	{Diminished, "diminished", []string{"dim"}, []int{0, 3, 6}},
	{Augmented, "augmented", []string{"aug"}, []int{0, 4, 8}},
	{Sus2, "sus2", nil, []int{0, 2, 7}},
	{Sus4, "sus4", nil, []int{0, 5, 7}},
	{Dominant7, "dom7", []string{"7", "dominant7"}, []int{0, 4, 7, 10}},
	{Major7, "maj7", []string{"major7"}, []int{0, 4, 7, 11}},
	{Minor7, "min7", []string{"m7", "minor7"}, []int{0, 3, 7, 10}},
	{Power, "power", []string{"5"}, []int{0, 7}},
}

// DefaultQualities is the template subset used when none is configured.
var DefaultQualities = []Quality{Major, Minor}

func (q Quality) String() string {
	if int(q) >= 0 && int(q) < len(qualityTable) {
		return qualityTable[q].Name
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// Spec returns the table row for q.
func (q Quality) Spec() (QualitySpec, bool) {
	if int(q) < 0 || int(q) >= len(qualityTable) {
		return QualitySpec{}, false
	}
	return qualityTable[q], true
}

// Qualities returns a copy of the full template table.
func Qualities() []QualitySpec {
	out := make([]QualitySpec, len(qualityTable))
	copy(out, qualityTable)
	return out
}

// ParseQuality resolves a quality name or alias. Matching is exact for
// single-letter aliases ("m", "M") and case-insensitive otherwise.
func ParseQuality(name string) (Quality, error) {
	name = strings.TrimSpace(name)
	for _, spec := range qualityTable {
		if strings.EqualFold(spec.Name, name) {
			return spec.Quality, nil
		}
		for _, alias := range spec.Aliases {
			if alias == name || (len(alias) > 1 && strings.EqualFold(alias, name)) {
				return spec.Quality, nil
			}
		}
	}
	return Major, fmt.Errorf("unknown chord quality: %q", name)
}

// ParseQualities resolves a list of names, rejecting empty lists and
// duplicates.
func ParseQualities(names []string) ([]Quality, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one chord quality is required", fault.ErrConfiguration)
	}
	seen := make(map[Quality]bool, len(names))
	out := make([]Quality, 0, len(names))
	for _, name := range names {
		q, err := ParseQuality(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fault.ErrConfiguration, err)
		}
		if seen[q] {
			return nil, fmt.Errorf("%w: chord quality %q listed twice", fault.ErrConfiguration, name)
		}
		seen[q] = true
		out = append(out, q)
	}
	return out, nil
}

// Template is a quality rotated to a root, expanded to a 12-bin binary
// pitch-class pattern.
type Template struct {
	Root    int
	Quality Quality
	Label   string
	Tones   int
	Pattern [12]float64
	norm    float64
}

// NewTemplate expands spec at root. It fails if the intervals are empty,
// out of range, repeated or do not include the root.
func NewTemplate(root int, spec QualitySpec) (Template, error) {
	if root < 0 || root > 11 {
		return Template{}, fmt.Errorf("%w: template root %d out of range", fault.ErrConfiguration, root)
	}
	if len(spec.Intervals) == 0 || spec.Name == "" {
		return Template{}, fmt.Errorf("%w: template %q has no intervals", fault.ErrConfiguration, spec.Name)
	}

	t := Template{
		Root:    root,
		Quality: spec.Quality,
		Label:   analysis.PitchClassName(root) + " " + spec.Name,
		Tones:   len(spec.Intervals),
	}
	hasRoot := false
	for _, iv := range spec.Intervals {
		if iv < 0 || iv > 11 {
			return Template{}, fmt.Errorf("%w: template %q interval %d out of range", fault.ErrConfiguration, spec.Name, iv)
		}
		bin := (root + iv) % 12
		if t.Pattern[bin] != 0 {
			return Template{}, fmt.Errorf("%w: template %q repeats interval %d", fault.ErrConfiguration, spec.Name, iv)
		}
		t.Pattern[bin] = 1
		hasRoot = hasRoot || iv == 0
	}
	if !hasRoot {
		return Template{}, fmt.Errorf("%w: template %q does not include its root", fault.ErrConfiguration, spec.Name)
	}
	t.norm = floats.Norm(t.Pattern[:], 2)
	return t, nil
}

// BuildTemplates expands each quality over all twelve roots, in the order
// given and then by root.
func BuildTemplates(qualities []Quality) ([]Template, error) {
	specs := make([]QualitySpec, 0, len(qualities))
	for _, q := range qualities {
		spec, ok := q.Spec()
		if !ok {
			return nil, fmt.Errorf("%w: unknown chord quality %v", fault.ErrConfiguration, q)
		}
		specs = append(specs, spec)
	}
	return BuildTemplatesFrom(specs)
}

// BuildTemplatesFrom expands arbitrary quality specs, which lets callers
// add chord types without touching the matcher.
func BuildTemplatesFrom(specs []QualitySpec) ([]Template, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no chord templates configured", fault.ErrConfiguration)
	}
	templates := make([]Template, 0, 12*len(specs))
	for _, spec := range specs {
		for root := range 12 {
			t, err := NewTemplate(root, spec)
			if err != nil {
				return nil, err
			}
			templates = append(templates, t)
		}
	}
	return templates, nil
}
