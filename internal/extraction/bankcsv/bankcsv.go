// Package bankcsv extracts bank statements exported as CSV.
//
// The first row is a header. Recognised columns (case-insensitive):
// date, description, category, amount, credit, debit, balance. Either an
// amount column or a credit/debit pair is required. Leading "# key: value"
// lines carry statement metadata such as account_holder and bank_name.
package bankcsv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"casework/internal/casefile"
	"casework/internal/extraction"
)

var errNoAmountColumn = errors.New("statement has neither an amount column nor credit/debit columns")

// Extractor parses CSV bank statements into the bank_statement field map.
type Extractor struct{}

func New() Extractor {
	return Extractor{}
}

func (Extractor) Extract(ctx context.Context, doc extraction.Document) (casefile.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, err := Parse(bytes.NewReader(doc.Data))
	if err != nil {
		return nil, extraction.NewExtractionError(casefile.KindBankStatement, extraction.ErrorBadData, "bank statement CSV could not be parsed", err)
	}
	return fields, nil
}

// Parse reads a CSV statement.
func Parse(r io.Reader) (casefile.Fields, error) {
	fields := casefile.Fields{}
	body, err := readMetadata(bufio.NewReader(r), fields)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(body)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	_, hasAmount := cols["amount"]
	_, hasCredit := cols["credit"]
	_, hasDebit := cols["debit"]
	if !hasAmount && !hasCredit && !hasDebit {
		return nil, errNoAmountColumn
	}

	var txns []any
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txn, err := parseRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if txn != nil {
			txns = append(txns, txn)
		}
	}
	fields["transactions"] = txns
	return fields, nil
}

func readMetadata(br *bufio.Reader, fields casefile.Fields) (io.Reader, error) {
	for {
		peek, err := br.Peek(1)
		if err != nil || peek[0] != '#' {
			return br, nil
		}
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(strings.TrimSpace(line), "#"), ":")
		if ok {
			fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
		if errors.Is(err, io.EOF) {
			return br, nil
		}
	}
}

func parseRow(rec []string, cols map[string]int) (map[string]any, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	if strings.Join(rec, "") == "" {
		return nil, nil
	}

	amount, err := rowAmount(get)
	if err != nil {
		return nil, err
	}
	txn := map[string]any{
		"date":   get("date"),
		"amount": amount,
	}
	if v := get("description"); v != "" {
		txn["description"] = v
	}
	if v := get("category"); v != "" {
		txn["category"] = v
	}
	if v := get("balance"); v != "" {
		bal, err := parseNumber(v)
		if err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		txn["balance"] = bal
	}
	return txn, nil
}

func rowAmount(get func(string) string) (float64, error) {
	if v := get("amount"); v != "" {
		return parseNumber(v)
	}
	var amount float64
	if v := get("credit"); v != "" {
		c, err := parseNumber(v)
		if err != nil {
			return 0, fmt.Errorf("credit: %w", err)
		}
		amount += c
	}
	if v := get("debit"); v != "" {
		d, err := parseNumber(v)
		if err != nil {
			return 0, fmt.Errorf("debit: %w", err)
		}
		if d > 0 {
			d = -d
		}
		amount += d
	}
	return amount, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "AED"), "AED"))
	s = strings.ReplaceAll(s, ",", "")
	neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if neg {
		v = -v
	}
	return v, nil
}
