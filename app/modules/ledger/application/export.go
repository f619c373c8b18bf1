package ledgerservice

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	ledgerdb "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/infrastructure/repositories"
	"github.com/xuri/excelize/v2"
)

const (
	exportSheet      = "Ranking"
	exportDateLayout = "2006-01-02 15:04"
	utf8BOM          = "\ufeff"
)

var exportHeader = []string{"#", "Handle", "Chat", "Nick", "Lifetime", "Season", "Registered"}

// ExportFilename names an export taken now, e.g. ranking_20261017_0930.csv.
func (s *LedgerService) ExportFilename(ext string) string {
	return fmt.Sprintf("ranking_%s.%s", s.clock.Now().Format("20060102_1504"), ext)
}

func exportRecord(st ledgerdb.Standing) []string {
	return []string{
		strconv.Itoa(st.Rank),
		st.Handle,
		st.ChatID,
		st.Nick,
		strconv.Itoa(st.LifetimePoints),
		strconv.Itoa(st.SeasonPoints),
		st.CreatedAt.UTC().Format(exportDateLayout),
	}
}

// ExportCSV writes the full lifetime ranking as CSV with a UTF-8 byte order mark.
func (s *LedgerService) ExportCSV(ctx context.Context, w io.Writer) error {
	standings, err := s.repo.Ranking(ctx, s.db, ledgerdb.ByLifetime, 0)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, st := range standings {
		if err := cw.Write(exportRecord(st)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportXLSX writes the full lifetime ranking as a single-sheet workbook.
func (s *LedgerService) ExportXLSX(ctx context.Context, w io.Writer) error {
	standings, err := s.repo.Ranking(ctx, s.db, ledgerdb.ByLifetime, 0)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return err
	}

	header := make([]any, len(exportHeader))
	for i, h := range exportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return err
	}

	for i, st := range standings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			st.Rank,
			st.Handle,
			st.ChatID,
			st.Nick,
			st.LifetimePoints,
			st.SeasonPoints,
			st.CreatedAt.UTC().Format(exportDateLayout),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
