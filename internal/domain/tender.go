package domain

// Tender is one procurement record from the public portal.
// Descriptive fields mirror the portal's notification card; all of them
// except ID, Region and DateAdded may be empty.
type Tender struct {
	ID             int64
	Name           string
	Price          *float64 // nil when the notification carries no price
	LawType        string
	PurchaseMethod string
	OKPD2Code      string
	PublishDate    string
	EndDate        string
	ResultsDate    string
	CustomerINN    string
	CustomerName   string
	Region         string
	Stage          string
	DateAdded      string

	// NameVector and CustomerNameVector are filled asynchronously by the
	// vectorization job. nil means the record has not been embedded yet;
	// such records are excluded from vector search but stay reachable by ID.
	NameVector         []float32
	CustomerNameVector []float32
}

// TenderFilter selects tenders by structured constraints.
// The zero value of every field means "no constraint"; absence is never
// defaulted to anything restrictive.
type TenderFilter struct {
	Region         string
	Date           string // matches records added strictly after this date
	MinPrice       *float64
	MaxPrice       *float64
	LawType        string   // word-wise substring match
	PurchaseMethod string   // word-wise substring match
	OKPD2Code      string
	CustomerINN    string
	Keywords       []string // any keyword as substring of the tender name
}
