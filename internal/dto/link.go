package dto

import (
	"time"

	"linkintel/internal/models"
)

type LinkResponse struct {
	ID           string  `json:"id"`
	SourceType   string  `json:"source_type"`
	SourceID     string  `json:"source_id"`
	TargetType   string  `json:"target_type"`
	TargetID     string  `json:"target_id"`
	Confidence   float64 `json:"confidence"`
	EvidenceText string  `json:"evidence_text"`
	UserDecision string  `json:"user_decision"`
	CreatedAt    string  `json:"created_at"`
}

type AnalyzeResponse struct {
	TotalAnalyzed int            `json:"total_analyzed"`
	NewLinks      []LinkResponse `json:"new_links"`
}

type DecideLinkRequest struct {
	Decision string `json:"decision" validate:"required,oneof=accepted rejected"`
}

func NewLinkResponse(link *models.Link) LinkResponse {
	return LinkResponse{
		ID:           link.ID.String(),
		SourceType:   string(link.SourceType),
		SourceID:     link.SourceID.String(),
		TargetType:   string(link.TargetType),
		TargetID:     link.TargetID.String(),
		Confidence:   link.Confidence,
		EvidenceText: link.EvidenceText,
		UserDecision: string(link.UserDecision),
		CreatedAt:    link.CreatedAt.Format(time.RFC3339),
	}
}

func NewLinkResponses(links []*models.Link) []LinkResponse {
	responses := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		responses = append(responses, NewLinkResponse(link))
	}
	return responses
}
