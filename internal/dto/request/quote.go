package request

// QuoteRequest is read from the query string.
type QuoteRequest struct {
	Adults   int    `validate:"min=0,max=500"`
	Children int    `validate:"min=0,max=500"`
	Seniors  int    `validate:"min=0,max=500"`
	Date     string `validate:"omitempty,datetime=2006-01-02"`
	Currency string `validate:"omitempty,iso4217"`
}
