package oddsapi

// Event is one game in a the-odds-api v4 /odds response.
type Event struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title,omitempty"`
	CommenceTime string      `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker groups the markets one book is offering for an event.
type Bookmaker struct {
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	LastUpdate string   `json:"last_update,omitempty"`
	Markets    []Market `json:"markets"`
}

// Market is a single bet type. Only "h2h" (moneyline) is read.
type Market struct {
	Key      string    `json:"key"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome is one side of a market. Price is American when oddsFormat=american.
type Outcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// RateLimits reports the request quota headers from the last live call.
type RateLimits struct {
	Remaining string `json:"remaining"`
	Used      string `json:"used"`
	LastCost  string `json:"last_cost,omitempty"`
}
