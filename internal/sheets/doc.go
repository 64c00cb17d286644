// Package sheets loads and saves the lead table from a Google Sheets
// worksheet.
//
// The whole worksheet is read as formatted strings and written back in one
// update starting at A1, with RAW input so cell text is stored verbatim.
// Number and formula cells therefore come back as text after a save; the
// worksheet is expected to hold plain values.
package sheets
