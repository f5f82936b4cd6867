// Package exporter renders stores as TradeSkillMaster LoadData lines.
package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alanyoungcy/auctiondb/internal/domain"
	"github.com/alanyoungcy/auctiondb/internal/market"
)

// Field is one exported column.
type Field string

const (
	FieldItemString        Field = "itemString"
	FieldMinBuyout         Field = "minBuyout"
	FieldNumAuctions       Field = "numAuctions"
	FieldMarketValueRecent Field = "marketValueRecent"
	FieldHistorical        Field = "historical"
	FieldRegionHistorical  Field = "regionHistorical"
	FieldMarketValue       Field = "marketValue"
	FieldRegionMarketValue Field = "regionMarketValue"
)

// Export is one LoadData block type and its columns.
type Export struct {
	Type   string
	Fields []Field
}

var (
	// RealmExports are written for every connected realm.
	RealmExports = []Export{
		{"AUCTIONDB_REALM_DATA", []Field{FieldItemString, FieldMinBuyout, FieldNumAuctions, FieldMarketValueRecent}},
		{"AUCTIONDB_REALM_HISTORICAL", []Field{FieldItemString, FieldHistorical}},
		{"AUCTIONDB_REALM_SCAN_STAT", []Field{FieldItemString, FieldMarketValue}},
	}
	// CommodityExport is written once per region for commodities.
	CommodityExport = Export{"AUCTIONDB_REGION_COMMODITY", []Field{FieldItemString, FieldMinBuyout, FieldNumAuctions, FieldMarketValueRecent}}
	// RegionExports are written over the union of every store in a region.
	RegionExports = []Export{
		{"AUCTIONDB_REGION_STAT", []Field{FieldItemString, FieldRegionMarketValue}},
		{"AUCTIONDB_REGION_HISTORICAL", []Field{FieldItemString, FieldRegionHistorical}},
	}
)

const digits = "0123456789ABCDEFGHIJKLMNOP"

// FormatInt renders v in base 26 with the digits 0-9A-P.
func FormatInt(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	var buf [16]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = digits[u%26]
		u /= 26
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// RealmString builds the "<crid>,<name>,..." realm argument. Names that
// would break the quoted Lua string are rejected.
func RealmString(crid int32, names []string) (string, error) {
	parts := make([]string, 0, len(names)+1)
	parts = append(parts, strconv.FormatInt(int64(crid), 10))
	for _, n := range names {
		if strings.ContainsAny(n, `,"`) {
			return "", fmt.Errorf("exporter: realm name %q contains a separator", n)
		}
		parts = append(parts, n)
	}
	return strings.Join(parts, ","), nil
}

// RegionString is the realm argument of region and commodity blocks.
func RegionString(r domain.Region) string { return strings.ToUpper(string(r)) }

// TSM writes LoadData lines.
type TSM struct {
	tuning market.Tuning
	logger *slog.Logger
}

// NewTSM creates an exporter using t for weighted and historical values.
func NewTSM(t market.Tuning, logger *slog.Logger) *TSM {
	return &TSM{tuning: t, logger: logger.With(slog.String("component", "exporter"))}
}

// Write renders s as one LoadData line. Recent fields only count records
// taken at or after begin; weighted and historical values are computed at
// end, which is also the download time.
func (e *TSM) Write(w io.Writer, s *market.Store, exp Export, realm string, begin, end int64) error {
	e.logger.Info("exporting", slog.String("type", exp.Type), slog.String("realm", realm), slog.Int("entries", s.Len()))

	var data strings.Builder
	first := true
	var err error
	s.Range(func(key domain.ItemString, rs market.Records) bool {
		var row []string
		row, err = e.row(key, rs, exp.Fields, begin, end)
		if err != nil {
			return false
		}
		if !first {
			data.WriteByte(',')
		}
		first = false
		data.WriteString("{" + strings.Join(row, ",") + "}")
		return true
	})
	if err != nil {
		return err
	}

	fields := make([]string, len(exp.Fields))
	for i, f := range exp.Fields {
		fields[i] = `"` + string(f) + `"`
	}
	_, err = fmt.Fprintf(w,
		"select(2, ...).LoadData(%q,%q,[[return {downloadTime=%d,fields={%s},data={%s}}]])\n",
		exp.Type, realm, end, strings.Join(fields, ","), data.String())
	if err != nil {
		return fmt.Errorf("exporter: write %s: %w", exp.Type, err)
	}
	return nil
}

func (e *TSM) row(key domain.ItemString, rs market.Records, fields []Field, begin, end int64) ([]string, error) {
	row := make([]string, 0, len(fields))
	for _, f := range fields {
		var v int64
		switch f {
		case FieldItemString:
			row = append(row, quoteItemString(key.String()))
			continue
		case FieldMinBuyout:
			v = rs.RecentMinBuyout(begin)
		case FieldNumAuctions:
			v = rs.RecentNumAuctions(begin)
		case FieldMarketValueRecent:
			v = rs.RecentMarketValue(begin)
		case FieldHistorical, FieldRegionHistorical:
			v = rs.Historical(end, e.tuning)
		case FieldMarketValue, FieldRegionMarketValue:
			v = rs.Weighted(end, e.tuning)
		default:
			return nil, fmt.Errorf("exporter: unsupported field %q", f)
		}
		row = append(row, FormatInt(v))
	}
	return row, nil
}

// quoteItemString leaves plain item ids bare and quotes everything else.
func quoteItemString(s string) string {
	for _, c := range s {
		if c < '0' || c > '9' {
			return `"` + s + `"`
		}
	}
	return s
}
