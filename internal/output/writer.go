// Package output serializes a crawl result into its two artifacts: the
// row-per-document table file and the author-country tally file.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/rupat-crawler/internal/crawler"
	"github.com/JakeFAU/rupat-crawler/internal/patent"
	"github.com/JakeFAU/rupat-crawler/internal/storage"
)

// Content types used for the artifacts.
const (
	TableContentType = "text/csv; charset=utf-8"
	TallyContentType = "application/json"
)

// Default artifact naming.
const (
	DefaultTablePrefix     = "russian_patents"
	DefaultTallyPrefix     = "country_count"
	DefaultTimestampLayout = "2006-01-02_15"
)

// maxNameAttempts bounds the suffixes tried when a run's names are taken.
const maxNameAttempts = 100

// ErrMirror is returned, wrapped, when every artifact reached the primary
// store but at least one mirror write failed. The Artifacts returned with it
// are valid.
var ErrMirror = errors.New("mirror write failed")

// Config controls artifact naming.
type Config struct {
	TablePrefix     string
	TallyPrefix     string
	TimestampLayout string
}

// Artifacts names what a Write stored and where.
type Artifacts struct {
	TableName string   `json:"table_name,omitempty"`
	TallyName string   `json:"tally_name"`
	TableURIs []string `json:"table_uris,omitempty"`
	TallyURIs []string `json:"tally_uris"`
}

// Writer stores artifacts in a primary store and any number of mirrors.
type Writer struct {
	cfg     Config
	clock   crawler.Clock
	primary crawler.BlobStore
	mirrors []crawler.BlobStore
	logger  *zap.Logger
}

// NewWriter builds a Writer. Every artifact of a write lands in primary
// before any mirror is touched.
func NewWriter(
	cfg Config,
	clock crawler.Clock,
	logger *zap.Logger,
	primary crawler.BlobStore,
	mirrors ...crawler.BlobStore,
) *Writer {
	if cfg.TablePrefix == "" {
		cfg.TablePrefix = DefaultTablePrefix
	}
	if cfg.TallyPrefix == "" {
		cfg.TallyPrefix = DefaultTallyPrefix
	}
	if cfg.TimestampLayout == "" {
		cfg.TimestampLayout = DefaultTimestampLayout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{cfg: cfg, clock: clock, primary: primary, logger: logger}
	for _, m := range mirrors {
		if m != nil {
			w.mirrors = append(w.mirrors, m)
		}
	}
	return w
}

// Names returns the table and tally file names for t.
func (w *Writer) Names(t time.Time) (table, tally string) {
	return w.names(t.Format(w.cfg.TimestampLayout), 1)
}

// names builds the pair for stamp. Attempts after the first carry a numeric
// suffix, e.g. russian_patents_2024-03-01_14_2.csv.
func (w *Writer) names(stamp string, attempt int) (table, tally string) {
	if attempt > 1 {
		stamp = fmt.Sprintf("%s_%d", stamp, attempt)
	}
	return fmt.Sprintf("%s_%s.csv", w.cfg.TablePrefix, stamp),
		fmt.Sprintf("%s_%s.txt", w.cfg.TallyPrefix, stamp)
}

// artifact is one object of a write and where it landed.
type artifact struct {
	table       bool
	contentType string
	data        []byte
	name        string
	uris        []string
}

// Write stores both artifacts. Both names share one timestamp; when a
// no-clobber primary already holds either name, the pair moves to the next
// free suffix instead of failing. A mirror failure is reported as ErrMirror
// alongside valid Artifacts.
func (w *Writer) Write(ctx context.Context, table *patent.Table, tally *patent.Tally) (Artifacts, error) {
	if table == nil {
		return Artifacts{}, errors.New("nil table")
	}
	if tally == nil {
		tally = table.Tally()
	}

	var tableBuf bytes.Buffer
	if err := EncodeTable(&tableBuf, table); err != nil {
		return Artifacts{}, fmt.Errorf("encode table: %w", err)
	}
	tallyData, err := tally.MarshalJSON()
	if err != nil {
		return Artifacts{}, fmt.Errorf("encode tally: %w", err)
	}

	// Tally first, so a partial write strands only the small file.
	tallyObj := &artifact{contentType: TallyContentType, data: tallyData}
	tableObj := &artifact{table: true, contentType: TableContentType, data: tableBuf.Bytes()}
	items := []*artifact{tallyObj, tableObj}

	if err := w.claim(ctx, w.clock.Now().Format(w.cfg.TimestampLayout), items); err != nil {
		return Artifacts{}, err
	}
	mirrorErr := w.mirror(ctx, items)

	w.logger.Info("artifacts written",
		zap.Int("rows", table.Len()),
		zap.Strings("table", tableObj.uris),
		zap.Strings("tally", tallyObj.uris),
	)
	return Artifacts{
		TableName: tableObj.name,
		TallyName: tallyObj.name,
		TableURIs: tableObj.uris,
		TallyURIs: tallyObj.uris,
	}, mirrorErr
}

// WriteTally stores only a tally artifact, e.g. one merged from several
// table files. Name collisions and mirror failures are handled as in Write.
func (w *Writer) WriteTally(ctx context.Context, tally *patent.Tally) (Artifacts, error) {
	if tally == nil {
		return Artifacts{}, errors.New("nil tally")
	}
	data, err := tally.MarshalJSON()
	if err != nil {
		return Artifacts{}, fmt.Errorf("encode tally: %w", err)
	}
	item := &artifact{contentType: TallyContentType, data: data}
	items := []*artifact{item}
	if err := w.claim(ctx, w.clock.Now().Format(w.cfg.TimestampLayout), items); err != nil {
		return Artifacts{}, err
	}
	mirrorErr := w.mirror(ctx, items)
	w.logger.Info("tally written", zap.Strings("tally", item.uris))
	return Artifacts{TallyName: item.name, TallyURIs: item.uris}, mirrorErr
}

// claim stores items in the primary store under the first name pair for
// stamp that is free.
func (w *Writer) claim(ctx context.Context, stamp string, items []*artifact) error {
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		tableName, tallyName := w.names(stamp, attempt)
		taken := false
		var stored []string
		for _, item := range items {
			item.name = tallyName
			if item.table {
				item.name = tableName
			}
			uri, err := w.primary.PutObject(ctx, item.name, item.contentType, bytes.NewReader(item.data))
			if errors.Is(err, storage.ErrObjectExists) {
				if len(stored) > 0 {
					w.logger.Warn("artifact name taken after a partial write",
						zap.String("name", item.name), zap.Strings("stranded", stored))
				}
				taken = true
				break
			}
			if err != nil {
				return fmt.Errorf("store %s: %w", item.name, err)
			}
			item.uris = []string{uri}
			stored = append(stored, uri)
		}
		if !taken {
			if attempt > 1 {
				w.logger.Warn("artifact names taken, stored under a suffix",
					zap.String("stamp", stamp), zap.Int("attempt", attempt))
			}
			return nil
		}
	}
	return fmt.Errorf("no free artifact names for %s after %d attempts: %w",
		stamp, maxNameAttempts, storage.ErrObjectExists)
}

// mirror copies items to every mirror, continuing past failures.
func (w *Writer) mirror(ctx context.Context, items []*artifact) error {
	var errs []error
	for _, store := range w.mirrors {
		for _, item := range items {
			uri, err := store.PutObject(ctx, item.name, item.contentType, bytes.NewReader(item.data))
			if err != nil {
				errs = append(errs, fmt.Errorf("mirror %s: %w", item.name, err))
				continue
			}
			item.uris = append(item.uris, uri)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	err := errors.Join(errs...)
	w.logger.Error("artifact mirror failed", zap.Error(err))
	return fmt.Errorf("%w: %w", ErrMirror, err)
}
