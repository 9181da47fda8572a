// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion_test

import (
	"io"
	"strings"
	"testing"

	svcerrors "github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/motion"
	"github.com/stretchr/testify/require"
)

func TestCSVReadAll(t *testing.T) {
	const data = `timestamp,x,y,z
# resting
1000, 0, 0, 0
1200, 0.5, -0.25, 9.81
`
	samples, err := motion.NewCSVReader(strings.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []motion.Sample{
		{TimestampMillis: 1000},
		{TimestampMillis: 1200, X: 0.5, Y: -0.25, Z: 9.81},
	}, samples)
}

func TestCSVWithoutHeader(t *testing.T) {
	r := motion.NewCSVReader(strings.NewReader("5,1,2,3\n"))

	s, err := r.Read()
	require.NoError(t, err)
	require.Equal(t, motion.Sample{TimestampMillis: 5, X: 1, Y: 2, Z: 3}, s)

	_, err = r.Read()
	require.ErrorIs(t, err, io.EOF)
}

func TestCSVInvalidRows(t *testing.T) {
	_, err := motion.NewCSVReader(strings.NewReader("1,2,3\n")).Read()
	require.True(t, svcerrors.Is(err, svcerrors.ArgumentInvalid))

	_, err = motion.NewCSVReader(strings.NewReader("1,2,abc,3\n")).Read()
	require.True(t, svcerrors.Is(err, svcerrors.ArgumentInvalid))
	require.Contains(t, err.Error(), `invalid y "abc"`)

	_, err = motion.NewCSVReader(strings.NewReader("soon,0,0,0\n")).Read()
	require.True(t, svcerrors.Is(err, svcerrors.ArgumentInvalid))
}
