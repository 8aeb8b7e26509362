package domain

// NoResultsID is the reserved tender ID carried by the "no results" sentinel.
const NoResultsID int64 = -1

// SearchResult is the public shape of one search hit.
type SearchResult struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	LawType         string  `json:"law_type,omitempty"`
	PurchaseMethod  string  `json:"purchase_method,omitempty"`
	OKPD2Code       string  `json:"okpd2_code,omitempty"`
	PublishDate     string  `json:"publish_date,omitempty"`
	EndDate         string  `json:"end_date,omitempty"`
	CustomerINN     string  `json:"customer_inn,omitempty"`
	CustomerName    string  `json:"customer_name,omitempty"`
	Region          string  `json:"region,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
	NoResults       bool    `json:"no_results,omitempty"`
}

// NoResultsSentinel is the well-formed placeholder returned instead of an
// empty list when a valid query matches nothing. Callers must treat it as
// zero matches, not as a real record: it is distinguished by NoResultsID
// and the NoResults flag, not by its zero similarity score.
func NoResultsSentinel() SearchResult {
	return SearchResult{
		ID:              NoResultsID,
		Name:            "Тендеры не найдены",
		SimilarityScore: 0,
		NoResults:       true,
	}
}

// ResultFromTender maps a tender record into the public result shape.
// A missing price is rendered as 0.
func ResultFromTender(t Tender, score float64) SearchResult {
	price := 0.0
	if t.Price != nil {
		price = *t.Price
	}
	return SearchResult{
		ID:              t.ID,
		Name:            t.Name,
		Price:           price,
		LawType:         t.LawType,
		PurchaseMethod:  t.PurchaseMethod,
		OKPD2Code:       t.OKPD2Code,
		PublishDate:     t.PublishDate,
		EndDate:         t.EndDate,
		CustomerINN:     t.CustomerINN,
		CustomerName:    t.CustomerName,
		Region:          t.Region,
		SimilarityScore: score,
	}
}
