package hg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

// Wire shapes for `--style xml` log output. The dates hg writes are
// RFC 3339 with a numeric zone offset.
type xmlLog struct {
	XMLName xml.Name   `xml:"log"`
	Entries []xmlEntry `xml:"logentry"`
}

type xmlEntry struct {
	Revision int       `xml:"revision,attr"`
	Node     string    `xml:"node,attr"`
	Tags     []string  `xml:"tag"`
	Branch   string    `xml:"branch"`
	Author   xmlAuthor `xml:"author"`
	Date     string    `xml:"date"`
	Message  string    `xml:"msg"`
}

type xmlAuthor struct {
	Email string `xml:"email,attr"`
	Name  string `xml:",chardata"`
}

// parseLogXML converts `--style xml` output into revisions, newest first,
// in the order hg emitted them.
func parseLogXML(data []byte) ([]Revision, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var lg xmlLog
	if err := xml.Unmarshal(data, &lg); err != nil {
		return nil, fmt.Errorf("parse log xml: %w", err)
	}

	revs := make([]Revision, 0, len(lg.Entries))
	for _, e := range lg.Entries {
		date, err := time.Parse(time.RFC3339, e.Date)
		if err != nil {
			return nil, fmt.Errorf("parse log date %q: %w", e.Date, err)
		}
		revs = append(revs, Revision{
			Rev:     e.Revision,
			Node:    e.Node,
			Tags:    e.Tags,
			Branch:  e.Branch,
			Author:  e.Author.Name,
			Email:   e.Author.Email,
			Date:    date,
			Message: e.Message,
		})
	}
	return revs, nil
}
