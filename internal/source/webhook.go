package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gamecal/internal/log"
	"gamecal/internal/model"
)

// maxBody caps how much of a webhook response is read.
const maxBody = 8 << 20

// Webhook fetches records from an HTTP endpoint returning a JSON array.
//
// Two element shapes are understood and normalized into model.Record:
//
//	{"Event": "...", "Show": "T", "Description": "...", "Link": "...", "Image": "..."}
//	{"name": "...", "visible": true, "description": "...", "start": "...", ...}
type Webhook struct {
	url    string
	client *http.Client
	log    *log.Logger
}

func NewWebhook(url string, logger *log.Logger) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: logger,
	}
}

func (w *Webhook) Fetch(ctx context.Context) ([]model.Record, error) {
	if w.url == "" {
		return nil, ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	w.log.Info("webhook fetch start", "url", log.RedactURL(w.url))

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}

	records, err := DecodeRecords(body)
	if err != nil {
		return nil, err
	}

	w.log.Info("webhook fetch success", "url", log.RedactURL(w.url), "records", len(records))
	return records, nil
}

// DecodeRecords parses a JSON array of records in either supported shape.
// Elements without a name are skipped.
func DecodeRecords(body []byte) ([]model.Record, error) {
	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	if raw == nil {
		return nil, errors.New("decode records: body is not an array")
	}

	out := make([]model.Record, 0, len(raw))
	for _, item := range raw {
		rec, ok := normalize(item)
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func normalize(item map[string]any) (model.Record, bool) {
	rec := model.Record{
		ID:          str(item, "id", "ID", "row_number"),
		Name:        strings.TrimSpace(str(item, "Event", "name", "title", "Name")),
		Description: str(item, "Description", "description"),
		Image:       str(item, "Image", "image", "image_url"),
		Link:        str(item, "Link", "link", "url"),
		Location:    str(item, "Location", "location"),
		Category:    str(item, "Category", "category"),
		Start:       timeOf(item, "Start", "start", "start_time"),
		End:         timeOf(item, "End", "end", "end_time"),
		Show:        show(item),
	}
	if rec.Name == "" {
		return model.Record{}, false
	}
	return rec, true
}

// show reads the visibility flag. A missing flag yields nil so the record
// is kept by the pre-filter, except for spreadsheet rows (keyed by "Event"),
// which are only shown when marked.
func show(item map[string]any) *bool {
	for _, k := range []string{"Show", "show", "visible", "Visible"} {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case bool:
			return model.Bool(t)
		case string:
			// The spreadsheet source writes "T" and "F".
			return model.Bool(t == "T" || strings.EqualFold(t, "true"))
		case float64:
			return model.Bool(t != 0)
		default:
			return model.Bool(false)
		}
	}
	if _, sheet := item["Event"]; sheet {
		return model.Bool(false)
	}
	return nil
}

func str(item map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := item[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func timeOf(item map[string]any, keys ...string) time.Time {
	s := str(item, keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
