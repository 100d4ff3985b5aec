package adapter

import (
	"github.com/anvik/docstream/internal/api"
	"github.com/anvik/docstream/internal/domain/docmodel"
)

func ToUploadResponse(id string) api.UploadResponse {
	return api.UploadResponse{
		Id:     id,
		Status: "queued",
	}
}

func ToSearchResponse(result docmodel.SearchResult) api.SearchResponse {
	hits := make([]api.SearchHit, 0, len(result.Results))
	for _, hit := range result.Results {
		hits = append(hits, api.SearchHit{
			Id:    hit.Id,
			Score: hit.Score,
			Payload: api.HitPayload{
				Text:     hit.Payload.Text,
				Filename: hit.Payload.Filename,
				DocId:    hit.Payload.DocId,
			},
		})
	}
	return api.SearchResponse{
		Query:   result.Query,
		Results: hits,
	}
}

func ToDocumentRecords(documents []docmodel.Document) []api.DocumentRecord {
	records := make([]api.DocumentRecord, 0, len(documents))
	for _, doc := range documents {
		records = append(records, api.DocumentRecord{
			Id:         doc.Id,
			Filename:   doc.Filename,
			UploadDate: doc.UploadDate,
			Processed:  doc.Processed(),
		})
	}
	return records
}

func BadRequest(message string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		Code:    code,
		Message: message,
	}
}
