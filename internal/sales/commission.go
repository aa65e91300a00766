package sales

// Commission computes the commission owed for a sale. The rate is given in
// percent units (5 means 5%). In dollar display mode the rate itself is the
// flat commission and revenue is ignored; any other mode is treated as
// percentage, the default.
//
// User rows store the rate as a fraction; callers convert with rate*100 at
// this boundary and nowhere else.
func Commission(revenue, rate float64, displayMode string) float64 {
	if displayMode == DisplayDollar {
		return rate
	}
	return revenue * (rate / 100)
}
