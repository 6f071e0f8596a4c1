package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/engine/relevance"
)

// RankedDataset is a score with its picker label.
type RankedDataset struct {
	relevance.Score
	Label string `json:"label"`
}

// RankingResponse is a ranked catalog.
type RankingResponse struct {
	Query   relevance.Query   `json:"query"`
	Weights relevance.Weights `json:"weights"`
	Ranking []RankedDataset   `json:"ranking"`
}

func rank(q relevance.Query, catalog []relevance.Dataset, w relevance.Weights) (RankingResponse, error) {
	scores, err := relevance.Rank(q, catalog, w)
	if err != nil {
		return RankingResponse{}, err
	}
	out := RankingResponse{Query: q, Weights: w, Ranking: make([]RankedDataset, 0, len(scores))}
	for _, sc := range scores {
		out.Ranking = append(out.Ranking, RankedDataset{Score: sc, Label: sc.Label()})
	}
	return out, nil
}

func handleUseCases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]relevance.UseCase{"use_cases": relevance.UseCases()})
}

func handleUseCaseRelevance(w http.ResponseWriter, r *http.Request) {
	uc, err := relevance.FindUseCase(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	if !uc.Ready() {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: fmt.Sprintf("use case %s has no query or catalog yet", uc.ID)})
		return
	}
	resp, err := rank(*uc.Query, uc.Catalog, relevance.DefaultWeights)
	if err != nil {
		writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type relevanceRequest struct {
	Query    *relevance.Query    `json:"query"`
	Datasets []relevance.Dataset `json:"datasets"`
	Weights  *relevance.Weights  `json:"weights"`
}

func handleRelevance(w http.ResponseWriter, r *http.Request) {
	var req relevanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
		return
	}
	if req.Query == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: domain.NewValidationError("query", "", domain.ErrInvalidParams).Error()})
		return
	}
	if err := req.Query.Validate(); err != nil {
		writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
		return
	}
	catalog := req.Datasets
	if catalog == nil {
		catalog = relevance.DefaultCatalog
	}
	weights := relevance.DefaultWeights
	if req.Weights != nil {
		weights = *req.Weights
	}
	resp, err := rank(*req.Query, catalog, weights)
	if err != nil {
		writeJSON(w, statusOf(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
