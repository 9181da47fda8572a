// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package language

import (
	"fmt"
	"slices"

	"github.com/sakura/springbreak/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type (
	// Table lists the languages a user may speak in (sources) and translate
	// into (destinations), as BCP 47 tags.
	Table struct {
		Sources      []string          `json:"sources"      yaml:"sources"`
		Destinations []string          `json:"destinations" yaml:"destinations"`
		Names        map[string]string `json:"names"        yaml:"names"`
	}

	// Selection is a device's chosen language pair.
	Selection struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
	}
)

// Default returns the built-in language table.
func Default() Table {
	return Table{
		Sources:      []string{"en-US"},
		Destinations: []string{"es-US", "ja-JP", "fr-FR"},
		Names: map[string]string{
			"en-US": "English",
			"es-US": "Spanish",
			"ja-JP": "Japanese",
			"fr-FR": "French",
		},
	}
}

// DefaultSelection returns the first source and destination of the table.
func (t Table) DefaultSelection() Selection {
	var sel Selection
	if len(t.Sources) > 0 {
		sel.Source = t.Sources[0]
	}
	if len(t.Destinations) > 0 {
		sel.Destination = t.Destinations[0]
	}
	return sel
}

// Validate checks that the table is non-empty and that every tag parses and
// carries a region.
func (t Table) Validate() error {
	if len(t.Sources) == 0 {
		return errors.Config("Sources", t.Sources, "no source languages")
	}
	if len(t.Destinations) == 0 {
		return errors.Config("Destinations", t.Destinations, "no destination languages")
	}
	for _, tag := range slices.Concat(t.Sources, t.Destinations) {
		if _, err := Country(tag); err != nil {
			return errors.Config("Tag", tag, err.Error())
		}
	}
	return nil
}

// Check verifies that the selection pairs a supported source with a supported
// destination.
func (t Table) Check(sel Selection) error {
	if !slices.Contains(t.Sources, sel.Source) {
		return errors.Invalid("source", sel.Source,
			fmt.Sprintf("unsupported source language %q", sel.Source))
	}
	if !slices.Contains(t.Destinations, sel.Destination) {
		return errors.Invalid("destination", sel.Destination,
			fmt.Sprintf("unsupported destination language %q", sel.Destination))
	}
	return nil
}

// Name returns the configured display name of the tag, falling back to its
// English name.
func (t Table) Name(tag string) string {
	if name, ok := t.Names[tag]; ok {
		return name
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	base, _ := parsed.Base()
	return display.English.Languages().Name(base)
}

// Base returns the ISO 639 language code of a tag ("ja" for "ja-JP"), which is
// what translation and speech synthesis engines key on.
func Base(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", errors.Invalid("tag", tag,
			fmt.Sprintf("invalid language tag %q", tag))
	}
	base, _ := parsed.Base()
	return base.String(), nil
}

// Country returns the English name of the tag's region ("Japan" for
// "ja-JP"). Tags without an explicit region are rejected.
func Country(tag string) (string, error) {
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", errors.Invalid("tag", tag,
			fmt.Sprintf("invalid language tag %q", tag))
	}
	region, conf := parsed.Region()
	if conf != language.Exact {
		return "", errors.Invalid("tag", tag,
			fmt.Sprintf("language tag %q has no region", tag))
	}
	return display.English.Regions().Name(region), nil
}
