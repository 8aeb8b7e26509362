package domain

// Intent is the structured form of a user query produced by the query
// interpreter. FreeText is always non-empty by the time it reaches vector
// search: the orchestrator substitutes the raw query when parsing yields
// nothing usable. Empty string / nil fields mean the query expressed no
// such constraint.
type Intent struct {
	FreeText       string
	CustomerText   string // non-empty only when the query targets a customer
	Region         string
	Date           string
	MinPrice       *float64
	MaxPrice       *float64
	LawType        string
	PurchaseMethod string
	OKPD2Code      string
	CustomerINN    string
	Keywords       []string
}

// HasCustomer reports whether the query carries a customer component,
// which enables the secondary customer-name vector search.
func (in Intent) HasCustomer() bool {
	return in.CustomerText != ""
}

// Filter maps the intent's structured constraints to a store filter.
func (in Intent) Filter() TenderFilter {
	return TenderFilter{
		Region:         in.Region,
		Date:           in.Date,
		MinPrice:       in.MinPrice,
		MaxPrice:       in.MaxPrice,
		LawType:        in.LawType,
		PurchaseMethod: in.PurchaseMethod,
		OKPD2Code:      in.OKPD2Code,
		CustomerINN:    in.CustomerINN,
		Keywords:       in.Keywords,
	}
}
