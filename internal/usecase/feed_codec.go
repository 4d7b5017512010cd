package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/user/linkchecker-service/internal/entity"
	"go.uber.org/zap"
)

// feedRecord is one element of the data feed JSON array.
type feedRecord struct {
	ResourcePath  string     `json:"resourcePath"`
	PropertyName  string     `json:"propertyName"`
	Href          string     `json:"href"`
	Type          string     `json:"type"`
	StatusMessage string     `json:"statusMessage"`
	ResourceType  string     `json:"resourceType"`
	StatusCode    statusCode `json:"statusCode"`
}

// statusCode is written as a number and read from a number or a numeric string.
type statusCode int

func (c *statusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("status code %q: %w", s, err)
		}
		*c = statusCode(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = statusCode(n)
	return nil
}

// feedType is the link type as stored in the feed: INTERNAL, EXTERNAL or the provider id.
func feedType(link entity.Link) string {
	switch link.Kind {
	case entity.LinkInternal:
		return "INTERNAL"
	case entity.LinkExternal:
		return "EXTERNAL"
	default:
		return link.Provider
	}
}

func encodeFeed(rows []entity.GridResource) ([]byte, error) {
	records := make([]feedRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, feedRecord{
			ResourcePath:  r.ResourcePath,
			PropertyName:  r.PropertyName,
			Href:          r.Link.Href,
			Type:          feedType(r.Link.Link),
			StatusMessage: r.Link.Status.Message,
			ResourceType:  r.ResourceType,
			StatusCode:    statusCode(r.Link.Status.Code),
		})
	}
	return json.Marshal(records)
}

// decodeFeed parses the feed. Records that cannot be parsed or carry no href
// are logged and skipped; only a broken array fails the whole feed.
func decodeFeed(raw []byte, logger *zap.Logger) ([]entity.GridResource, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode data feed: %w", err)
	}
	rows := make([]entity.GridResource, 0, len(items))
	for i, item := range items {
		var rec feedRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			logger.Warn("skipping malformed data feed record", zap.Int("index", i), zap.Error(err))
			continue
		}
		if rec.Href == "" {
			logger.Warn("skipping data feed record without href", zap.Int("index", i))
			continue
		}
		kind, provider := entity.ParseLinkType(rec.Type)
		link := entity.Link{Href: rec.Href, Kind: kind, Provider: provider}
		status := entity.Status{Code: int(rec.StatusCode), Message: rec.StatusMessage}
		if status.Code == 0 {
			status = entity.DefaultStatus()
		}
		rows = append(rows, entity.GridResource{
			Link:         link.Resolve(status),
			ResourcePath: rec.ResourcePath,
			PropertyName: rec.PropertyName,
			ResourceType: rec.ResourceType,
		})
	}
	return rows, nil
}
