package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/lysyi3m/donation-relay/app/donation"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			WidthMax:         48,
			WidthMaxEnforcer: text.WrapSoft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func donationTable(records []donation.Record) string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.Fingerprint,
			record.Date,
			record.Amount,
			record.Grantee,
			record.DateSeen,
			deliveredChannels(record),
		})
	}

	return renderTable(
		[]string{"Fingerprint", "Date", "Amount", "Grantee", "Seen", "Delivered"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

func donationDetails(record donation.Record) string {
	rows := [][]string{
		{"Fingerprint", record.Fingerprint},
		{"Date", record.Date},
		{"Amount", record.Amount},
		{"Category", record.Category},
		{"Grantee", record.Grantee},
		{"Link", record.Link},
		{"Why", record.Why},
		{"Seen", record.DateSeen},
		{"Delivered", deliveredChannels(record)},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func deliveredChannels(record donation.Record) string {
	var delivered []string
	for _, ch := range record.Delivered.Channels() {
		if record.Delivered[ch] {
			delivered = append(delivered, string(ch))
		}
	}
	if len(delivered) == 0 {
		return "-"
	}
	return strings.Join(delivered, ", ")
}
