// Package vcard encodes session contacts as a vCard 3.0 bundle and parses
// such a bundle back into name/phone pairs.
package vcard

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/efeurhobobullish/vcf-generator/domain"
)

const (
	Version       = "3.0"
	FileExtension = ".vcf"
	revLayout     = "2006-01-02T15:04:05.000Z"
)

var ErrMalformed = fmt.Errorf("malformed vcard payload")

// Card is the parsed form of one BEGIN:VCARD ... END:VCARD block.
type Card struct {
	FullName string
	Phone    string
	Rev      string
}

// Encode writes one block per contact, in input order, each followed by a
// blank line. Every block carries the same REV timestamp.
func Encode(contacts []domain.Contact, rev time.Time) []byte {
	if len(contacts) == 0 {
		return nil
	}
	stamp := rev.UTC().Format(revLayout)

	var buf bytes.Buffer
	for _, c := range contacts {
		buf.WriteString("BEGIN:VCARD\n")
		buf.WriteString("VERSION:" + Version + "\n")
		buf.WriteString("FN:" + escape(c.FullName) + "\n")
		buf.WriteString("TEL;TYPE=CELL:" + c.Phone + "\n")
		buf.WriteString("REV:" + stamp + "\n")
		buf.WriteString("END:VCARD\n\n")
	}
	return buf.Bytes()
}

// FileName is the attachment name used when the bundle is delivered.
func FileName(id domain.SessionID) string {
	return "contacts_" + id.String() + FileExtension
}

func Parse(payload []byte) ([]Card, error) {
	var (
		cards   []Card
		current *Card
		line    int
	)
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		name, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, fmt.Errorf("%w: line %d has no value separator", ErrMalformed, line)
		}
		property, _, _ := strings.Cut(name, ";")
		switch strings.ToUpper(property) {
		case "BEGIN":
			if current != nil {
				return nil, fmt.Errorf("%w: nested BEGIN at line %d", ErrMalformed, line)
			}
			current = &Card{}
		case "END":
			if current == nil {
				return nil, fmt.Errorf("%w: END without BEGIN at line %d", ErrMalformed, line)
			}
			cards = append(cards, *current)
			current = nil
		case "FN":
			if current != nil {
				current.FullName = unescape(value)
			}
		case "TEL":
			if current != nil {
				current.Phone = value
			}
		case "REV":
			if current != nil {
				current.Rev = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		return nil, fmt.Errorf("%w: unterminated card", ErrMalformed)
	}
	return cards, nil
}

var (
	escaper   = strings.NewReplacer(`\`, `\\`, ",", `\,`, ";", `\;`, "\r\n", `\n`, "\n", `\n`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\,`, ",", `\;`, ";", `\n`, "\n", `\N`, "\n")
)

func escape(s string) string {
	return escaper.Replace(s)
}

func unescape(s string) string {
	return unescaper.Replace(s)
}
