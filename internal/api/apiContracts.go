package api

import "time"

type UploadResponse struct {
	Id     string `json:"id" example:"3e9c9b8a-4d5f-4d2e-9a2b-0a1f9f4f6d3c"`
	Status string `json:"status" example:"queued"`
}

type HitPayload struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	DocId    string `json:"doc_id"`
}

type SearchHit struct {
	Id      string     `json:"id"`
	Score   float32    `json:"score"`
	Payload HitPayload `json:"payload"`
}

type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

type DocumentRecord struct {
	Id         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"upload_date"`
	Processed  bool      `json:"processed"`
}

type StatusResponse struct {
	Status   string            `json:"status" example:"operational"`
	Services map[string]string `json:"services"`
}

type ErrorResponse struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"query is required"`
}
