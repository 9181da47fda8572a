// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package options

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type (
	option interface{ opt() }
	number interface{ number() int }

	one   struct{}
	two   struct{}
	named string
)

func (one) opt()            {}
func (one) number() int     { return 1 }
func (two) opt()            {}
func (two) number() int     { return 2 }
func (named) opt()          {}
func (*named) number() int  { return 0 }

func TestApplyFiltersByType(t *testing.T) {
	got := slices.Collect(Apply[number, option]([]option{one{}, named("x")}, two{}, nil))
	require.Len(t, got, 2)
	require.Equal(t, 1, got[0].number())
	require.Equal(t, 2, got[1].number())
}

func TestApplyStopsEarly(t *testing.T) {
	var seen int
	for range Apply[number]([]option{one{}, two{}}) {
		seen++
		break
	}
	require.Equal(t, 1, seen)
}
