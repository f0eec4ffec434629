package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/rupat-crawler/internal/patent"
	"github.com/JakeFAU/rupat-crawler/internal/storage"
	"github.com/JakeFAU/rupat-crawler/internal/storage/memory"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

var runTime = time.Date(2024, 3, 1, 14, 37, 0, 0, time.UTC)

func sampleTable(t *testing.T) *patent.Table {
	t.Helper()
	table := patent.NewTable(3)
	require.NoError(t, table.Append(2700001, patent.Fields{
		ApplicationDate: "01.07.2019",
		IndustryCodes:   []string{"G06F 17/30", "H04L 9/00"},
		Applicants:      []string{"ООО \"Ромашка\""},
		Authors:         []string{"Smith, J. (US)", "Doe, R. (GB)"},
		AuthorCountries: []string{"US", "GB"},
	}))
	require.NoError(t, table.Append(2700002, patent.Missing()))
	require.NoError(t, table.Append(2700003, patent.Fields{
		ApplicationDate: "NA",
		IndustryCodes:   []string{},
		Applicants:      []string{"Smith & Co"},
		Authors:         []string{"Иванов Иван Иванович (RU)", "Smith, J. (US)"},
		AuthorCountries: []string{"RU", "US"},
	}))
	return table
}

func TestEncodeTableLayout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, EncodeTable(&buf, sampleTable(t)))
	data := buf.Bytes()

	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}), "file starts with a UTF-8 BOM")
	lines := strings.Split(strings.TrimRight(string(data[3:]), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Patent Number,Application Date,Industry Codes,Applicants,Authors,Author Countries", lines[0])
	assert.Equal(t, `2700002,NA,[],"[""NA""]","[""NA""]",[]`, lines[2])
	assert.Contains(t, lines[3], `Smith & Co`, "list cells are not HTML-escaped")
}

func TestReadTableRoundTrip(t *testing.T) {
	t.Parallel()

	original := sampleTable(t)
	var buf bytes.Buffer
	require.NoError(t, EncodeTable(&buf, original))

	parsed, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, original.Records(), parsed.Records())
	assert.Equal(t, original.Tally().Map(), parsed.Tally().Map())
}

func TestReadTableWithoutBOM(t *testing.T) {
	t.Parallel()

	input := "Patent Number,Application Date,Industry Codes,Applicants,Authors,Author Countries\n" +
		`5,NA,[],"[""NA""]","[""NA""]",[]` + "\n"
	table, err := ReadTable(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, patent.Missing(), table.Records()[0].Fields)
}

func TestReadTableErrors(t *testing.T) {
	t.Parallel()

	header := "Patent Number,Application Date,Industry Codes,Applicants,Authors,Author Countries\n"
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty"},
		{"wrong header", "ID,Date,Codes,Applicants,Authors,Countries\n", "expected \"Patent Number\""},
		{"bad id", header + `x,NA,[],[],[],[]` + "\n", "patent number"},
		{"bad list", header + `1,NA,not-json,[],[],[]` + "\n", "Industry Codes"},
		{"short row", header + "1,NA\n", "wrong number of fields"},
		{"out of order", header + "2,NA,[],[],[],[]\n1,NA,[],[],[],[]\n", "document 1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadTable(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestWriterNames(t *testing.T) {
	t.Parallel()

	w := NewWriter(Config{}, fixedClock{runTime}, nil, memory.NewBlobStore(true))
	table, tally := w.Names(runTime)
	assert.Equal(t, "russian_patents_2024-03-01_14.csv", table)
	assert.Equal(t, "country_count_2024-03-01_14.txt", tally)

	custom := NewWriter(Config{TablePrefix: "t", TallyPrefix: "c", TimestampLayout: "20060102T1504"},
		fixedClock{runTime}, nil, memory.NewBlobStore(true))
	table, tally = custom.Names(runTime)
	assert.Equal(t, "t_20240301T1437.csv", table)
	assert.Equal(t, "c_20240301T1437.txt", tally)
}

func TestWriterWrite(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore(true)
	w := NewWriter(Config{}, fixedClock{runTime}, nil, store)
	table := sampleTable(t)

	artifacts, err := w.Write(context.Background(), table, table.Tally())
	require.NoError(t, err)
	assert.Equal(t, []string{"memory://russian_patents_2024-03-01_14.csv"}, artifacts.TableURIs)
	assert.Equal(t, []string{"memory://country_count_2024-03-01_14.txt"}, artifacts.TallyURIs)

	tallyObj, ok := store.Get("country_count_2024-03-01_14.txt")
	require.True(t, ok)
	assert.Equal(t, `{"US": 2, "GB": 1, "RU": 1}`, string(tallyObj.Data))
	assert.Equal(t, TallyContentType, tallyObj.ContentType)

	tableObj, ok := store.Get("russian_patents_2024-03-01_14.csv")
	require.True(t, ok)
	parsed, err := ReadTable(bytes.NewReader(tableObj.Data))
	require.NoError(t, err)
	assert.Equal(t, table.IDs(), parsed.IDs())
}

func TestWriterSameHourCollision(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore(true)
	first := NewWriter(Config{}, fixedClock{runTime}, nil, store)
	second := NewWriter(Config{}, fixedClock{runTime.Add(20 * time.Minute)}, nil, store)

	_, err := first.Write(context.Background(), sampleTable(t), nil)
	require.NoError(t, err)
	artifacts, err := second.Write(context.Background(), patent.NewTable(0), nil)
	require.NoError(t, err)
	assert.Equal(t, "russian_patents_2024-03-01_14_2.csv", artifacts.TableName)
	assert.Equal(t, "country_count_2024-03-01_14_2.txt", artifacts.TallyName)

	obj, _ := store.Get("country_count_2024-03-01_14.txt")
	assert.Equal(t, `{"US": 2, "GB": 1, "RU": 1}`, string(obj.Data), "first run's data survives")
	obj, _ = store.Get("country_count_2024-03-01_14_2.txt")
	assert.Equal(t, `{}`, string(obj.Data))
	assert.Len(t, store.Paths(), 4)
}

func TestWriterTableNameTakenMovesPair(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore(true)
	_, err := store.PutObject(context.Background(), "russian_patents_2024-03-01_14.csv", TableContentType,
		strings.NewReader("earlier"))
	require.NoError(t, err)

	w := NewWriter(Config{}, fixedClock{runTime}, nil, store)
	artifacts, err := w.Write(context.Background(), sampleTable(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "russian_patents_2024-03-01_14_2.csv", artifacts.TableName)
	assert.Equal(t, "country_count_2024-03-01_14_2.txt", artifacts.TallyName,
		"table and tally keep a matching name")

	obj, ok := store.Get("russian_patents_2024-03-01_14.csv")
	require.True(t, ok)
	assert.Equal(t, "earlier", string(obj.Data))
	obj, ok = store.Get("russian_patents_2024-03-01_14_2.csv")
	require.True(t, ok)
	parsed, err := ReadTable(bytes.NewReader(obj.Data))
	require.NoError(t, err)
	assert.Equal(t, 3, parsed.Len())
}

func TestWriterWriteTallyAfterCrawl(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore(true)
	w := NewWriter(Config{}, fixedClock{runTime}, nil, store)
	_, err := w.Write(context.Background(), sampleTable(t), nil)
	require.NoError(t, err)

	tally := patent.NewTally()
	tally.AddAll([]string{"DE"})
	artifacts, err := w.WriteTally(context.Background(), tally)
	require.NoError(t, err)
	assert.Equal(t, "country_count_2024-03-01_14_2.txt", artifacts.TallyName)
}

func TestWriterNoFreeName(t *testing.T) {
	t.Parallel()

	store := &storage.MockBlobStore{}
	store.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", storage.ErrObjectExists)

	w := NewWriter(Config{}, fixedClock{runTime}, nil, store)
	_, err := w.WriteTally(context.Background(), patent.NewTally())
	require.ErrorIs(t, err, storage.ErrObjectExists)
	store.AssertNumberOfCalls(t, "PutObject", maxNameAttempts)
}

func TestWriterMirrors(t *testing.T) {
	t.Parallel()

	primary := memory.NewBlobStore(true)
	mirror := &storage.MockBlobStore{}
	mirror.On("PutObject", mock.Anything, "russian_patents_2024-03-01_14.csv", TableContentType, mock.Anything).
		Return("gs://bucket/russian_patents_2024-03-01_14.csv", nil).Once()
	mirror.On("PutObject", mock.Anything, "country_count_2024-03-01_14.txt", TallyContentType, `{}`).
		Return("gs://bucket/country_count_2024-03-01_14.txt", nil).Once()

	w := NewWriter(Config{}, fixedClock{runTime}, nil, primary, nil, mirror)
	artifacts, err := w.Write(context.Background(), patent.NewTable(0), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"memory://russian_patents_2024-03-01_14.csv",
		"gs://bucket/russian_patents_2024-03-01_14.csv",
	}, artifacts.TableURIs)
	mirror.AssertExpectations(t)
}

func TestWriterMirrorFailure(t *testing.T) {
	t.Parallel()

	primary := memory.NewBlobStore(true)
	mirror := &storage.MockBlobStore{}
	mirror.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("gcs down"))

	w := NewWriter(Config{}, fixedClock{runTime}, nil, primary, mirror)
	artifacts, err := w.Write(context.Background(), sampleTable(t), nil)
	require.ErrorIs(t, err, ErrMirror)
	assert.ErrorContains(t, err, "gcs down")
	assert.ErrorContains(t, err, "russian_patents_2024-03-01_14.csv")
	assert.ErrorContains(t, err, "country_count_2024-03-01_14.txt")
	mirror.AssertNumberOfCalls(t, "PutObject", 2)

	assert.Equal(t, []string{
		"country_count_2024-03-01_14.txt",
		"russian_patents_2024-03-01_14.csv",
	}, primary.Paths(), "both artifacts land in the primary store")
	assert.Equal(t, []string{"memory://russian_patents_2024-03-01_14.csv"}, artifacts.TableURIs)
	assert.Equal(t, []string{"memory://country_count_2024-03-01_14.txt"}, artifacts.TallyURIs)
}

func TestWriterWriteTally(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore(true)
	w := NewWriter(Config{}, fixedClock{runTime}, nil, store)
	tally := patent.NewTally()
	tally.AddAll([]string{"RU", "RU", "DE"})

	artifacts, err := w.WriteTally(context.Background(), tally)
	require.NoError(t, err)
	assert.Empty(t, artifacts.TableURIs)
	assert.Equal(t, []string{"memory://country_count_2024-03-01_14.txt"}, artifacts.TallyURIs)
	assert.Equal(t, []string{"country_count_2024-03-01_14.txt"}, store.Paths())
}

func TestNewNotice(t *testing.T) {
	t.Parallel()

	table := sampleTable(t)
	artifacts := Artifacts{TableName: "russian_patents_2024-03-01_14.csv", TableURIs: []string{"file:///tmp/a.csv"}}
	notice := NewNotice("run-1", patent.Range{Start: 2700001, End: 2700004}, table, 1, nil, artifacts, runTime)

	assert.Equal(t, 3, notice.Rows)
	assert.Equal(t, 1, notice.Skipped)
	assert.Equal(t, 2700001, notice.Start)
	assert.Equal(t, 2700004, notice.End)
	require.NotNil(t, notice.Tally)
	assert.Equal(t, table.Tally().Total(), notice.Tally.Total())

	data, err := json.Marshal(notice)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "2024-03-01T14:37:00Z", decoded["finished_at"])
	assert.Contains(t, decoded, "tally")
	assert.Contains(t, decoded, "artifacts")
}
