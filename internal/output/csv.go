package output

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/JakeFAU/rupat-crawler/internal/patent"
)

// Header is the fixed column order of the table file.
var Header = []string{
	"Patent Number",
	"Application Date",
	"Industry Codes",
	"Applicants",
	"Authors",
	"Author Countries",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodeTable writes table as UTF-8 CSV with a byte-order mark and a header
// row. List cells are JSON arrays.
func EncodeTable(w io.Writer, table *patent.Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range table.Records() {
		row := []string{strconv.Itoa(int(rec.ID)), rec.ApplicationDate}
		for _, list := range [][]string{rec.IndustryCodes, rec.Applicants, rec.Authors, rec.AuthorCountries} {
			cell, err := listCell(list)
			if err != nil {
				return fmt.Errorf("encode row %d: %w", rec.ID, err)
			}
			row = append(row, cell)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", rec.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadTable parses a file written by EncodeTable. The byte-order mark is
// optional.
func ReadTable(r io.Reader) (*patent.Table, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, fmt.Errorf("skip bom: %w", err)
		}
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = len(Header)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("table file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, name := range Header {
		if header[i] != name {
			return nil, fmt.Errorf("column %d: expected %q, got %q", i+1, name, header[i])
		}
	}

	table := patent.NewTable(0)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return table, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec, err := parseRow(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := table.Append(rec.ID, rec.Fields); err != nil {
			return nil, fmt.Errorf("document %d: %w", rec.ID, err)
		}
	}
}

func parseRow(row []string) (patent.Record, error) {
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return patent.Record{}, fmt.Errorf("patent number %q: %w", row[0], err)
	}
	rec := patent.Record{ID: patent.DocumentID(id)}
	rec.ApplicationDate = row[1]
	lists := []*[]string{&rec.IndustryCodes, &rec.Applicants, &rec.Authors, &rec.AuthorCountries}
	for i, dst := range lists {
		if err := json.Unmarshal([]byte(row[i+2]), dst); err != nil {
			return patent.Record{}, fmt.Errorf("column %q: %w", Header[i+2], err)
		}
		if *dst == nil {
			*dst = []string{}
		}
	}
	return rec, nil
}

// listCell renders values as a JSON array without HTML escaping, so names
// like "Smith & Co" stay readable in spreadsheet tools.
func listCell(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", err //nolint:wrapcheck
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
