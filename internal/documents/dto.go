package documents

import (
	"encoding/json"
	"time"

	"fineprint-agent/internal/cache"
	"fineprint-agent/internal/workqueue"
)

type itemResponse struct {
	ID          string                    `json:"id"`
	DocumentID  string                    `json:"documentId"`
	FileName    string                    `json:"fileName"`
	MimeType    string                    `json:"mimeType"`
	SizeBytes   int64                     `json:"sizeBytes"`
	UserID      string                    `json:"userId,omitempty"`
	Status      workqueue.Status          `json:"status"`
	RetryCount  int                       `json:"retryCount"`
	LastError   string                    `json:"lastError,omitempty"`
	Options     workqueue.AnalysisOptions `json:"options"`
	CreatedAt   time.Time                 `json:"createdAt"`
	CompletedAt *time.Time                `json:"completedAt,omitempty"`
}

func toItemResponse(item workqueue.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		DocumentID:  item.DocumentID,
		FileName:    item.FileName,
		MimeType:    item.MimeType,
		SizeBytes:   item.SizeBytes,
		UserID:      item.UserID,
		Status:      item.Status,
		RetryCount:  item.RetryCount,
		LastError:   item.LastError,
		Options:     item.Options,
		CreatedAt:   item.CreatedAt,
		CompletedAt: item.CompletedAt,
	}
}

type analysisResponse struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	FileName   string          `json:"fileName"`
	Result     json.RawMessage `json:"result"`
	CreatedAt  time.Time       `json:"createdAt"`
	ExpiresAt  time.Time       `json:"expiresAt"`
	Checksum   string          `json:"checksum"`
}

func toAnalysisResponse(entry cache.CachedAnalysis) analysisResponse {
	return analysisResponse{
		ID:         entry.ID,
		DocumentID: entry.DocumentID,
		FileName:   entry.FileName,
		Result:     entry.Result,
		CreatedAt:  entry.CreatedAt,
		ExpiresAt:  entry.ExpiresAt,
		Checksum:   entry.Checksum,
	}
}
