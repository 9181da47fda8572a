// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package places_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"cloud.google.com/go/maps/places/apiv1/placespb"
	"github.com/googleapis/gax-go/v2/callctx"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/places"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/type/latlng"
	"google.golang.org/genproto/googleapis/type/localized_text"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAttractionsQuery(t *testing.T) {
	q, err := places.AttractionsQuery("ja-JP")
	require.NoError(t, err)
	require.Equal(t, places.Query{
		Text:       "Japan Attractions",
		MaxResults: places.DefaultMaxResults,
	}, q)

	_, err = places.AttractionsQuery("ja")
	require.True(t, errors.Is(err, errors.ArgumentInvalid))
}

func TestPick(t *testing.T) {
	_, err := places.Pick(nil, nil)
	require.True(t, errors.Is(err, errors.NoResults))

	// Short lists never index past their end.
	short := []places.Place{{Name: "a"}, {Name: "b"}}
	r := rand.New(rand.NewPCG(1, 2))
	seen := map[string]bool{}
	for range 100 {
		p, err := places.Pick(r, short)
		require.NoError(t, err)
		seen[p.Name] = true
	}
	require.Equal(t, map[string]bool{"a": true, "b": true}, seen)

	p, err := places.Pick(nil, short[:1])
	require.NoError(t, err)
	require.Equal(t, "a", p.Name)
}

func TestGeoURI(t *testing.T) {
	require.Equal(t, "geo:35.6586,139.7454",
		places.GeoURI(places.LatLng{Latitude: 35.6586, Longitude: 139.7454}))
	require.Equal(t, "geo:-33.8568,151.2153",
		places.GeoURI(places.LatLng{Latitude: -33.8568, Longitude: 151.2153}))
}

func TestGoogleSearchText(t *testing.T) {
	g := places.NewGoogleFunc(func(
		ctx context.Context,
		req *placespb.SearchTextRequest,
	) (*placespb.SearchTextResponse, error) {
		require.Equal(t, []string{places.FieldMask},
			callctx.HeadersFromContext(ctx)["x-goog-fieldmask"])
		require.Equal(t, "Japan Attractions", req.GetTextQuery())
		require.EqualValues(t, 5, req.GetMaxResultCount())

		return &placespb.SearchTextResponse{Places: []*placespb.Place{{
			DisplayName: &localized_text.LocalizedText{Text: "Tokyo Tower", LanguageCode: "en"},
			Location:    &latlng.LatLng{Latitude: 35.6586, Longitude: 139.7454},
		}, {
			DisplayName: &localized_text.LocalizedText{Text: "Fushimi Inari Taisha"},
			Location:    &latlng.LatLng{Latitude: 34.9671, Longitude: 135.7727},
		}}}, nil
	})

	q, err := places.AttractionsQuery("ja-JP")
	require.NoError(t, err)
	found, err := g.SearchText(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, []places.Place{
		{Name: "Tokyo Tower", Location: places.LatLng{Latitude: 35.6586, Longitude: 139.7454}},
		{Name: "Fushimi Inari Taisha", Location: places.LatLng{Latitude: 34.9671, Longitude: 135.7727}},
	}, found)
}

func TestGoogleSearchTextEmpty(t *testing.T) {
	calls := 0
	g := places.NewGoogleFunc(func(
		context.Context,
		*placespb.SearchTextRequest,
	) (*placespb.SearchTextResponse, error) {
		calls++
		return &placespb.SearchTextResponse{}, nil
	})

	found, err := g.SearchText(context.Background(), places.Query{Text: "Nowhere Attractions"})
	require.NoError(t, err)
	require.Empty(t, found)

	_, err = g.SearchText(context.Background(), places.Query{})
	require.True(t, errors.Is(err, errors.ArgumentInvalid))

	_, err = g.SearchText(context.Background(),
		places.Query{Text: "Japan Attractions", MaxResults: -1})
	require.True(t, errors.Is(err, errors.ArgumentInvalid))
	require.Equal(t, 1, calls)
}

func TestGoogleSearchTextServerError(t *testing.T) {
	g := places.NewGoogleFunc(func(
		context.Context,
		*placespb.SearchTextRequest,
	) (*placespb.SearchTextResponse, error) {
		return nil, status.Error(codes.Unavailable, "backend unavailable")
	})

	_, err := g.SearchText(context.Background(), places.Query{Text: "Japan Attractions"})
	require.True(t, errors.Is(err, errors.ExecutionException))
	require.Contains(t, err.Error(), "backend unavailable")

	_, err = places.NewGoogle(context.Background(), "")
	require.True(t, errors.Is(err, errors.ConfigurationInvalid))
}

func TestGoogleSearchTextRejectedKey(t *testing.T) {
	g := places.NewGoogleFunc(func(
		context.Context,
		*placespb.SearchTextRequest,
	) (*placespb.SearchTextResponse, error) {
		return nil, status.Error(codes.PermissionDenied, "API key not valid")
	})

	_, err := g.SearchText(context.Background(), places.Query{Text: "Japan Attractions"})
	require.True(t, errors.Is(err, errors.ConfigurationInvalid))
}
