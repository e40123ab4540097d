package poll

import "tradesim/api"

// OpenExchanges indexes the open state of each reported exchange.
func OpenExchanges(markets []api.Market) map[string]bool {
	open := make(map[string]bool, len(markets))
	for _, m := range markets {
		open[m.Exchange] = m.IsOpen
	}
	return open
}

// OpenSymbols returns, in order, the symbols of quotes whose exchange is
// reported open. Quotes on unknown exchanges, and all quotes while markets
// is nil, are left out.
func OpenSymbols(quotes []api.Quote, markets []api.Market) []string {
	if markets == nil {
		return nil
	}
	open := OpenExchanges(markets)
	var out []string
	for _, q := range quotes {
		if open[q.Exchange] {
			out = append(out, q.Symbol)
		}
	}
	return out
}
