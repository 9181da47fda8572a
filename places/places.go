// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package places

import (
	"context"
	"math/rand/v2"
	"strconv"

	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/language"
)

type (
	// LatLng is a WGS 84 coordinate.
	LatLng struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}

	// Place is a search result.
	Place struct {
		Name     string `json:"name"`
		Location LatLng `json:"location"`
	}

	// Query is a free-text place search.
	Query struct {
		Text       string
		MaxResults int
		Language   string
	}

	// Searcher looks up places by free text.
	Searcher interface {
		SearchText(ctx context.Context, q Query) ([]Place, error)
	}
)

// DefaultMaxResults is the number of candidates a destination search asks for.
const DefaultMaxResults = 5

// AttractionsQuery builds the search for attractions in the country of the
// destination language tag, e.g. "Japan Attractions" for "ja-JP".
func AttractionsQuery(tag string) (Query, error) {
	country, err := language.Country(tag)
	if err != nil {
		return Query{}, err
	}
	return Query{
		Text:       country + " Attractions",
		MaxResults: DefaultMaxResults,
	}, nil
}

// Pick chooses one of the places uniformly at random. A nil r uses the global
// source.
func Pick(r *rand.Rand, places []Place) (Place, error) {
	if len(places) == 0 {
		return Place{}, &errors.Error{
			Message: "no places found",
			Kind:    errors.NoResults,
		}
	}
	var i int
	if r == nil {
		// #nosec G404
		i = rand.IntN(len(places))
	} else {
		i = r.IntN(len(places))
	}
	return places[i], nil
}

// GeoURI returns the geo: URI that opens a map at the location.
func GeoURI(l LatLng) string {
	return "geo:" +
		strconv.FormatFloat(l.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}
