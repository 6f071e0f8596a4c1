package relevance

import (
	"fmt"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
)

// UseCase is a predefined question a user can start from. Cases without a
// query are listed but cannot be scored yet.
type UseCase struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Indicator string    `json:"indicator,omitempty"`
	Space     string    `json:"space,omitempty"`
	Time      string    `json:"time,omitempty"`
	Context   string    `json:"context,omitempty"`
	Query     *Query    `json:"query,omitempty"`
	Catalog   []Dataset `json:"catalog,omitempty"`
}

// Ready reports whether the case carries a query and a catalog.
func (u UseCase) Ready() bool { return u.Query != nil && len(u.Catalog) > 0 }

// DefaultCatalog lists the population sources considered for Hauts-de-Seine.
var DefaultCatalog = []Dataset{
	{Name: "INSEE", Space: "92", Time: "2017-2022", Context: "Women, Age", Reliability: 0.90, Completeness: 0.95},
	{Name: "WorldPop", Space: "FR", Time: "2015-2021", Context: "Age, Women", Reliability: 0.80, Completeness: 0.85},
	{Name: "Open Data Paris", Space: "75", Time: "2018-2023", Context: "Sex, Transport, Disability", Reliability: 0.83, Completeness: 0.86},
}

// UseCases returns the predefined use cases.
func UseCases() []UseCase {
	return []UseCase{
		{
			ID:        "women-transport-hauts-de-seine",
			Title:     "How women struggle with the convenient access to public transports in Hauts-de-Seine area since the 2017 French elections",
			Indicator: domain.Indicator11_2_1,
			Space:     "92 - Hauts-de-Seine",
			Time:      "Since 2017",
			Context:   "Women",
			Query:     &Query{Space: "92", Time: "2017-2024", Context: "Women"},
			Catalog:   append([]Dataset(nil), DefaultCatalog...),
		},
		{
			ID:    "elderly-healthcare-paris",
			Title: "How elderly people in Paris access healthcare services since COVID",
		},
		{
			ID:    "children-education-rural",
			Title: "Access to education for children in rural areas since 2015",
		},
	}
}

// FindUseCase looks a use case up by id.
func FindUseCase(id string) (UseCase, error) {
	for _, u := range UseCases() {
		if u.ID == id {
			return u, nil
		}
	}
	return UseCase{}, domain.NewValidationError("use_case", id, fmt.Errorf("%w: unknown use case", domain.ErrInvalidParams))
}
