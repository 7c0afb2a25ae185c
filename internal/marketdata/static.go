package marketdata

// Static fallback tables, consulted only after every live tier and the
// cache have failed. Entries exist for a handful of liquid B3 tickers so
// the UI never goes completely dark; a ticker absent from the table is
// reported as missing instead of being given a made-up price.

type staticQuote struct {
	Name          string
	Price         float64
	ChangePercent float64
	Volume        int64
}

var staticQuotes = map[string]staticQuote{
	"PETR4":  {Name: "PETROBRAS PN", Price: 38.50, ChangePercent: 1.2, Volume: 50000000},
	"VALE3":  {Name: "VALE ON", Price: 68.20, ChangePercent: -0.5, Volume: 30000000},
	"ITUB4":  {Name: "ITAUUNIBANCO PN", Price: 33.10, ChangePercent: 0.8, Volume: 25000000},
	"BBDC4":  {Name: "BRADESCO PN", Price: 14.50, ChangePercent: 0.3, Volume: 40000000},
	"BBAS3":  {Name: "BRASIL ON", Price: 27.80, ChangePercent: 1.5, Volume: 15000000},
	"WEGE3":  {Name: "WEG ON", Price: 52.40, ChangePercent: 0.1, Volume: 10000000},
	"MGLU3":  {Name: "MAGALU ON", Price: 12.30, ChangePercent: -2.1, Volume: 60000000},
	"CMIG3":  {Name: "CEMIG ON", Price: 11.55, ChangePercent: 0.5, Volume: 500000},
	"MXRF11": {Name: "MAXI RENDA", Price: 9.97, ChangePercent: 0.1, Volume: 800000},
	"HGLG11": {Name: "CSHG LOGISTICA", Price: 160.50, ChangePercent: 0.5, Volume: 500000},
	"KNRI11": {Name: "KINEA RENDA", Price: 158.20, ChangePercent: -0.2, Volume: 400000},
	"XPML11": {Name: "XP MALLS", Price: 109.70, ChangePercent: 0.1, Volume: 300000},
	"BTLG11": {Name: "BTG LOGISTICA", Price: 103.20, ChangePercent: 0.0, Volume: 250000},
	"VGIA11": {Name: "VALORA CRA", Price: 9.30, ChangePercent: 0.0, Volume: 1000000},
	"CPTR11": {Name: "CAPITANIA AGRO", Price: 9.70, ChangePercent: 0.0, Volume: 100000},
	"ARRI11": {Name: "ATRIO", Price: 9.50, ChangePercent: 0.0, Volume: 50000},
	"BTHF11": {Name: "BTG HEDGE", Price: 12.50, ChangePercent: 0.1, Volume: 100000},
}

// staticDividends holds recent payment history for popular dividend
// payers, keeping the price-target calculator usable with no provider.
var staticDividends = map[string][]Dividend{
	"BBAS3": {
		{Date: "2024-02-28", Value: 1.15, Type: "Dividendo"},
		{Date: "2024-05-30", Value: 0.95, Type: "JCP"},
		{Date: "2024-08-30", Value: 0.85, Type: "Dividendo"},
		{Date: "2024-11-29", Value: 1.10, Type: "JCP"},
		{Date: "2023-02-28", Value: 1.20, Type: "Dividendo"},
		{Date: "2023-06-30", Value: 0.90, Type: "JCP"},
		{Date: "2023-09-29", Value: 0.80, Type: "Dividendo"},
		{Date: "2023-12-28", Value: 1.05, Type: "JCP"},
	},
	"PETR4": {
		{Date: "2024-03-20", Value: 2.50, Type: "Dividendo"},
		{Date: "2024-06-20", Value: 1.80, Type: "Dividendo"},
		{Date: "2024-09-20", Value: 2.10, Type: "Dividendo"},
		{Date: "2023-05-19", Value: 3.50, Type: "Dividendo"},
		{Date: "2023-08-18", Value: 2.20, Type: "Dividendo"},
		{Date: "2023-11-21", Value: 2.40, Type: "Dividendo"},
	},
	"VALE3": {
		{Date: "2024-03-12", Value: 2.70, Type: "Dividendo"},
		{Date: "2024-09-04", Value: 2.10, Type: "JCP"},
		{Date: "2023-03-22", Value: 2.90, Type: "Dividendo"},
		{Date: "2023-09-01", Value: 1.95, Type: "JCP"},
	},
	"ITSA4": {
		{Date: "2024-03-01", Value: 0.02, Type: "JCP"},
		{Date: "2024-06-01", Value: 0.02, Type: "JCP"},
		{Date: "2024-09-01", Value: 0.25, Type: "Dividendo"},
		{Date: "2023-12-01", Value: 0.20, Type: "JCP"},
	},
	"TAEE11": {
		{Date: "2024-05-15", Value: 1.10, Type: "Dividendo"},
		{Date: "2024-08-15", Value: 0.95, Type: "Dividendo"},
		{Date: "2024-11-15", Value: 1.05, Type: "Dividendo"},
		{Date: "2023-05-15", Value: 1.15, Type: "Dividendo"},
		{Date: "2023-08-15", Value: 0.90, Type: "Dividendo"},
		{Date: "2023-11-15", Value: 1.00, Type: "Dividendo"},
	},
}

// StaticQuote returns the fallback quote for a known ticker
func StaticQuote(ticker string) (Quote, bool) {
	sq, ok := staticQuotes[NormalizeTicker(ticker)]
	if !ok {
		return Quote{}, false
	}
	return Quote{
		Ticker:        NormalizeTicker(ticker),
		Name:          sq.Name,
		Currency:      "BRL",
		Price:         sq.Price,
		ChangePercent: sq.ChangePercent,
		Volume:        sq.Volume,
		Source:        SourceStatic,
	}, true
}

// StaticDividends returns the fallback dividend history for a known ticker
func StaticDividends(ticker string) ([]Dividend, bool) {
	divs, ok := staticDividends[NormalizeTicker(ticker)]
	return divs, ok
}
