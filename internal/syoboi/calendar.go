// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package syoboi

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	unorm "golang.org/x/text/unicode/norm"
)

// JST is the calendar's timezone. Times in cal_chk.php carry no offset.
var JST = time.FixedZone("JST", 9*60*60)

const (
	calTimeLayout   = "20060102150405"
	maxResponseSize = 16 << 20
)

// ProgItem is one program entry of the calendar feed.
type ProgItem struct {
	PID         int
	TID         int
	StartTime   time.Time
	EndTime     time.Time
	ChannelName string
	ChannelID   int
	Count       string
	StartOffset int64 // seconds
	SubTitle    string
	Title       string
	ProgComment string
}

type calChkDoc struct {
	XMLName   xml.Name `xml:"syobocal"`
	ProgItems struct {
		Items []progItemXML `xml:"ProgItem"`
	} `xml:"ProgItems"`
}

type progItemXML struct {
	PID         string `xml:"PID,attr"`
	TID         string `xml:"TID,attr"`
	StTime      string `xml:"StTime,attr"`
	EdTime      string `xml:"EdTime,attr"`
	ChName      string `xml:"ChName,attr"`
	ChID        string `xml:"ChID,attr"`
	Count       string `xml:"Count,attr"`
	StOffset    string `xml:"StOffset,attr"`
	SubTitle    string `xml:"SubTitle,attr"`
	Title       string `xml:"Title,attr"`
	ProgComment string `xml:"ProgComment,attr"`
}

// ParseCalChk decodes a cal_chk.php response body.
func ParseCalChk(r io.Reader) ([]ProgItem, error) {
	dec := xml.NewDecoder(io.LimitReader(r, maxResponseSize))
	dec.Strict = true
	// No custom entities: blocks entity expansion attacks.
	dec.Entity = make(map[string]string)

	var doc calChkDoc
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode cal_chk: %w", err)
	}

	items := make([]ProgItem, 0, len(doc.ProgItems.Items))
	for i, raw := range doc.ProgItems.Items {
		item, err := raw.convert()
		if err != nil {
			return nil, fmt.Errorf("ProgItem #%d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (x progItemXML) convert() (ProgItem, error) {
	var (
		it  ProgItem
		err error
	)
	if it.PID, err = strconv.Atoi(strings.TrimSpace(x.PID)); err != nil {
		return it, fmt.Errorf("PID: %w", err)
	}
	if it.TID, err = strconv.Atoi(strings.TrimSpace(x.TID)); err != nil {
		return it, fmt.Errorf("TID: %w", err)
	}
	if it.ChannelID, err = strconv.Atoi(strings.TrimSpace(x.ChID)); err != nil {
		return it, fmt.Errorf("ChID: %w", err)
	}
	if it.StartTime, err = time.ParseInLocation(calTimeLayout, x.StTime, JST); err != nil {
		return it, fmt.Errorf("StTime: %w", err)
	}
	if it.EndTime, err = time.ParseInLocation(calTimeLayout, x.EdTime, JST); err != nil {
		return it, fmt.Errorf("EdTime: %w", err)
	}
	if s := strings.TrimSpace(x.StOffset); s != "" {
		if it.StartOffset, err = strconv.ParseInt(s, 10, 64); err != nil {
			return it, fmt.Errorf("StOffset: %w", err)
		}
	}
	it.ChannelName = normalize(x.ChName)
	it.Count = strings.TrimSpace(x.Count)
	it.SubTitle = normalize(x.SubTitle)
	it.Title = normalize(x.Title)
	it.ProgComment = normalize(x.ProgComment)
	return it, nil
}

func normalize(s string) string {
	return strings.TrimSpace(unorm.NFC.String(s))
}

type titleMediumDoc struct {
	Titles json.RawMessage `json:"Titles"`
}

type titleMediumInfo struct {
	Title string `json:"Title"`
}

// ParseTitleMedium extracts the title for tid from a TitleMedium response.
// ok is false when the calendar does not know tid.
func ParseTitleMedium(r io.Reader, tid int) (title string, ok bool, err error) {
	var doc titleMediumDoc
	if err := json.NewDecoder(io.LimitReader(r, maxResponseSize)).Decode(&doc); err != nil {
		return "", false, fmt.Errorf("decode TitleMedium: %w", err)
	}

	// An unknown tid yields an empty JSON array instead of an object.
	raw := strings.TrimSpace(string(doc.Titles))
	if raw == "" || raw == "null" || raw == "[]" {
		return "", false, nil
	}
	var titles map[string]titleMediumInfo
	if err := json.Unmarshal(doc.Titles, &titles); err != nil {
		return "", false, fmt.Errorf("decode TitleMedium titles: %w", err)
	}
	entry, found := titles[strconv.Itoa(tid)]
	if !found {
		return "", false, nil
	}
	return normalize(entry.Title), true, nil
}
