package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/opiniontrade/internal/domain"
)

// multipartThreshold is the serialized size above which the archiver switches
// to multipart upload.
const multipartThreshold = 8 * 1024 * 1024

// Archiver implements domain.Archiver: when a market resolves, its full trade
// history is serialized to JSONL and uploaded for offline record keeping.
// The primary store keeps its rows; the archive is a secondary copy.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver writing through the given blob writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// archiveHeader is the first line of every archive object.
type archiveHeader struct {
	MarketID   string `json:"market_id"`
	Question   string `json:"question"`
	Result     *bool  `json:"result"`
	TradeCount int    `json:"trade_count"`
}

// ArchiveMarket uploads the market header and one JSONL line per trade to
// archive/markets/{id}.jsonl and returns the object path.
func (a *Archiver) ArchiveMarket(ctx context.Context, market domain.Market, trades []domain.Trade) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	header := archiveHeader{
		MarketID:   market.ID,
		Question:   market.Question,
		Result:     market.Result,
		TradeCount: len(trades),
	}
	if err := enc.Encode(header); err != nil {
		return "", fmt.Errorf("s3blob: encode archive header: %w", err)
	}
	for i, t := range trades {
		if err := enc.Encode(t); err != nil {
			return "", fmt.Errorf("s3blob: encode trade %d: %w", i, err)
		}
	}

	path := fmt.Sprintf("archive/markets/%s.jsonl", market.ID)

	if buf.Len() > multipartThreshold {
		if err := a.putMultipart(ctx, path, &buf); err != nil {
			return "", err
		}
		return path, nil
	}
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return "", err
	}
	return path, nil
}

func (a *Archiver) putMultipart(ctx context.Context, path string, buf *bytes.Buffer) error {
	if w, ok := a.writer.(*Writer); ok {
		return w.PutMultipart(ctx, path, buf, minPartSize)
	}
	return a.writer.Put(ctx, path, buf, "application/x-ndjson")
}

var _ domain.Archiver = (*Archiver)(nil)
