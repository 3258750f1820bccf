package vcard

import (
	"strings"
	"testing"
	"time"

	"github.com/efeurhobobullish/vcf-generator/domain"
	"github.com/stretchr/testify/require"
)

var rev = time.Date(2026, 3, 1, 12, 1, 1, 0, time.UTC)

func TestEncode_SingleContact(t *testing.T) {
	req := require.New(t)
	contacts := []domain.Contact{{FullName: "Jane Doe", Phone: "+2348012345678"}}

	payload := Encode(contacts, rev)

	expected := "BEGIN:VCARD\n" +
		"VERSION:3.0\n" +
		"FN:Jane Doe\n" +
		"TEL;TYPE=CELL:+2348012345678\n" +
		"REV:2026-03-01T12:01:01.000Z\n" +
		"END:VCARD\n\n"
	req.Equal(expected, string(payload))
}

func TestEncode_Empty(t *testing.T) {
	req := require.New(t)
	req.Empty(Encode(nil, rev))
	req.Empty(Encode([]domain.Contact{}, rev))
}

func TestEncode_BlocksAreSeparatedByABlankLine(t *testing.T) {
	req := require.New(t)
	contacts := []domain.Contact{
		{FullName: "Alice", Phone: "+2348000000001"},
		{FullName: "Bob", Phone: "+2348000000002"},
	}

	payload := string(Encode(contacts, rev))

	req.Equal(2, strings.Count(payload, "BEGIN:VCARD"))
	req.Contains(payload, "END:VCARD\n\nBEGIN:VCARD\n")
	req.True(strings.Index(payload, "FN:Alice") < strings.Index(payload, "FN:Bob"))
}

func TestEncodeParse_RoundTrip(t *testing.T) {
	req := require.New(t)
	contacts := []domain.Contact{
		{FullName: "Jane Doe", Phone: "+2348012345678"},
		{FullName: "Okafor, Chidi; Jr.", Phone: "+2349011112222"},
		{FullName: `Back\slash`, Phone: "+2347033334444"},
		{FullName: "Ngozi", Phone: "+2348055556666"},
	}

	cards, err := Parse(Encode(contacts, rev))
	req.NoError(err)
	req.Len(cards, len(contacts))
	for i, c := range contacts {
		req.Equal(c.FullName, cards[i].FullName)
		req.Equal(c.Phone, cards[i].Phone)
		req.Equal("2026-03-01T12:01:01.000Z", cards[i].Rev)
	}
}

func TestParse_Malformed(t *testing.T) {
	req := require.New(t)

	_, err := Parse([]byte("BEGIN:VCARD\nFN:Jane\n"))
	req.ErrorIs(err, ErrMalformed)

	_, err = Parse([]byte("END:VCARD\n"))
	req.ErrorIs(err, ErrMalformed)

	_, err = Parse([]byte("BEGIN:VCARD\nno separator\nEND:VCARD\n"))
	req.ErrorIs(err, ErrMalformed)
}

func TestFileName(t *testing.T) {
	require.Equal(t, "contacts_abc.vcf", FileName("abc"))
}
