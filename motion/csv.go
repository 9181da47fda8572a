// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package motion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sakura/springbreak/errors"
)

// CSVReader reads recorded samples as "timestamp,x,y,z" rows, with the
// timestamp in Unix milliseconds. A leading header row is skipped.
type CSVReader struct {
	r    *csv.Reader
	line int
}

// NewCSVReader creates a reader over r.
func NewCSVReader(r io.Reader) *CSVReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true
	cr.Comment = '#'
	return &CSVReader{r: cr}
}

// Read returns the next sample, or io.EOF after the last row.
func (c *CSVReader) Read() (Sample, error) {
	for {
		rec, err := c.r.Read()
		if err != nil {
			if err == io.EOF {
				return Sample{}, err
			}
			return Sample{}, &errors.Error{
				Message:     fmt.Sprintf("invalid sample row: %v", err),
				Kind:        errors.ArgumentInvalid,
				NestedError: err,
			}
		}
		c.line++

		if c.line == 1 && strings.EqualFold(rec[0], "timestamp") {
			continue
		}
		return c.parse(rec)
	}
}

// ReadAll returns every remaining sample.
func (c *CSVReader) ReadAll() ([]Sample, error) {
	var out []Sample
	for {
		s, err := c.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
}

func (c *CSVReader) parse(rec []string) (Sample, error) {
	ts, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return Sample{}, c.invalid("timestamp", rec[0])
	}

	var axes [3]float64
	for i, name := range []string{"x", "y", "z"} {
		axes[i], err = strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return Sample{}, c.invalid(name, rec[i+1])
		}
	}

	return Sample{
		TimestampMillis: ts,
		X:               axes[0],
		Y:               axes[1],
		Z:               axes[2],
	}, nil
}

func (c *CSVReader) invalid(field, value string) error {
	return errors.Invalid(
		field,
		value,
		fmt.Sprintf("row %d: invalid %s %q", c.line, field, value),
	)
}
