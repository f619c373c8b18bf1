package ledgerservice

import (
	"context"
	"io"
	"strconv"
	"strings"

	ledgerdomain "github.com/Black-And-White-Club/arena-ranking/app/modules/ledger/domain"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/xuri/excelize/v2"
)

// RecognizedResults is the raw recognized text and the rows parsed from it.
type RecognizedResults struct {
	Text string                   `json:"text"`
	Rows []ledgerdomain.ResultRow `json:"rows"`
}

// RecognizeResults extracts result rows from a screenshot. Without a configured recognizer the
// failure is shared.ErrOCRUnsupported.
func (s *LedgerService) RecognizeResults(ctx context.Context, image []byte) (results.OperationResult[*RecognizedResults, error], error) {
	return withTelemetry[*RecognizedResults, error](s, ctx, "RecognizeResults", 0, func(ctx context.Context) (results.OperationResult[*RecognizedResults, error], error) {
		if s.recognizer == nil {
			return results.FailureResult[*RecognizedResults, error](shared.ErrOCRUnsupported), nil
		}
		if len(image) == 0 {
			return results.FailureResult[*RecognizedResults, error](shared.Invalid("image", "empty upload")), nil
		}
		text, err := s.recognizer.Recognize(ctx, image)
		if err != nil {
			return results.OperationResult[*RecognizedResults, error]{}, err
		}
		rows := ledgerdomain.ParseResultsText(text)
		if rows == nil {
			rows = []ledgerdomain.ResultRow{}
		}
		return results.SuccessResult[*RecognizedResults, error](&RecognizedResults{Text: text, Rows: rows}), nil
	})
}

var (
	positionHeaders = map[string]bool{"#": true, "pos": true, "position": true, "place": true, "rank": true}
	nickHeaders     = map[string]bool{"nick": true, "nickname": true, "name": true, "player": true}
)

// ParseResultsSpreadsheet reads result rows from the first sheet of a workbook. Columns are found
// by header name; without a recognizable header the first two columns are position and nick.
func (s *LedgerService) ParseResultsSpreadsheet(ctx context.Context, r io.Reader) (results.OperationResult[[]ledgerdomain.ResultRow, error], error) {
	return withTelemetry[[]ledgerdomain.ResultRow, error](s, ctx, "ParseResultsSpreadsheet", 0, func(ctx context.Context) (results.OperationResult[[]ledgerdomain.ResultRow, error], error) {
		f, err := excelize.OpenReader(r)
		if err != nil {
			return results.FailureResult[[]ledgerdomain.ResultRow, error](shared.Invalid("file", "not a readable spreadsheet")), nil
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return results.FailureResult[[]ledgerdomain.ResultRow, error](shared.Invalid("file", "workbook has no sheets")), nil
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return results.OperationResult[[]ledgerdomain.ResultRow, error]{}, err
		}

		parsed := ParseResultRows(rows)
		if len(parsed) == 0 {
			return results.FailureResult[[]ledgerdomain.ResultRow, error](shared.Invalid("file", "no result rows found")), nil
		}
		return results.SuccessResult[[]ledgerdomain.ResultRow, error](parsed), nil
	})
}

// ParseResultRows turns spreadsheet rows into result rows, skipping rows without a valid
// position or nick.
func ParseResultRows(rows [][]string) []ledgerdomain.ResultRow {
	posCol, nickCol, start := 0, 1, 0
	if len(rows) > 0 {
		if p, n, ok := detectHeader(rows[0]); ok {
			posCol, nickCol, start = p, n, 1
		}
	}

	var out []ledgerdomain.ResultRow
	for _, row := range rows[start:] {
		if posCol >= len(row) || nickCol >= len(row) {
			continue
		}
		pos, err := strconv.Atoi(strings.Trim(strings.TrimSpace(row[posCol]), "#."))
		if err != nil || pos < 1 || pos > ledgerdomain.MaxScoringPosition {
			continue
		}
		nick := strings.TrimSpace(row[nickCol])
		if nick == "" {
			continue
		}
		out = append(out, ledgerdomain.ResultRow{Position: pos, Nick: nick})
	}
	return out
}

func detectHeader(row []string) (posCol, nickCol int, ok bool) {
	posCol, nickCol = -1, -1
	for i, cell := range row {
		h := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case posCol < 0 && positionHeaders[h]:
			posCol = i
		case nickCol < 0 && nickHeaders[h]:
			nickCol = i
		}
	}
	return posCol, nickCol, posCol >= 0 && nickCol >= 0
}
