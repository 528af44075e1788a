package donation

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// RowFields is the number of positional fields in a source row:
// date, amount, category, grantee, link, why.
const RowFields = 6

var ErrMalformedRow = errors.New("malformed row")

// Normalize turns one raw source row into a canonical record with its fingerprint set.
func Normalize(row []string) (Record, error) {
	if len(row) < RowFields {
		return Record{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, RowFields, len(row))
	}

	record := Record{
		Date:     strings.TrimSpace(row[0]),
		Amount:   strings.ReplaceAll(strings.TrimSpace(row[1]), " ", ""),
		Category: strings.TrimSpace(row[2]),
		Grantee:  strings.TrimSpace(row[3]),
		Link:     strings.TrimSpace(row[4]),
		Why:      strings.TrimSpace(row[5]),
	}
	record.Fingerprint = Fingerprint(record)

	return record, nil
}

// Fingerprint derives the record identity from date, amount and grantee only.
// Category, link and why never participate, so rows differing only in those
// fields collapse into one donation.
func Fingerprint(record Record) string {
	sum := md5.Sum([]byte(record.Date + record.Amount + record.Grantee))
	return hex.EncodeToString(sum[:])
}
