package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang/glog"

	"tradesim/api"
	"tradesim/currency"
	"tradesim/poll"
	"tradesim/ui"
)

const (
	pageSize     = 20
	visibleRows  = 15
	favoritesTab = "favorites"
)

var marketTabs = append(append([]string{}, api.Categories...), favoritesTab)

type stocksMsg struct {
	gen  uint64
	page *api.StockPage
	more bool
	err  error
}

type favoritesMsg struct {
	symbols []string
	err     error
}

type favoriteToggledMsg struct {
	symbol string
	added  bool
	err    error
}

type searchMsg struct {
	query   string
	results []api.SearchResult
	err     error
}

type marketModel struct {
	tab       int
	stocks    []api.Quote
	hasMore   bool
	total     int
	loading   bool
	cursor    int
	markets   []api.Market
	favorites map[string]bool

	search    textinput.Model
	searching bool
	query     string
	results   []api.SearchResult

	listLoop   *poll.Loop
	marketLoop *poll.Loop
	quoteLoop  *poll.Loop
	loops      poll.Group

	err    string
	status string
}

func newMarket(d Deps) marketModel {
	search := textinput.New()
	search.Placeholder = "symbol or company name"
	search.CharLimit = 40

	list := poll.NewLoop("market.list", d.Intervals.Favorites, d.Visibility)
	markets := poll.NewLoop("market.status", d.Intervals.Markets, d.Visibility)
	quotes := poll.NewLoop("market.quotes", d.Intervals.Quote, d.Visibility)

	return marketModel{
		favorites:  map[string]bool{},
		search:     search,
		listLoop:   list,
		marketLoop: markets,
		quoteLoop:  quotes,
		loops:      poll.Group{list, markets, quotes},
	}
}

// enter resumes the current tab. Rows already loaded stay on screen until
// the immediate refresh replaces them.
func (m *marketModel) enter(d Deps) tea.Cmd {
	m.err, m.status = "", ""
	m.loading = len(m.stocks) == 0
	scope := marketTabs[m.tab]
	return tea.Batch(
		m.marketLoop.Start("all"),
		m.listLoop.Start(scope),
		m.quoteLoop.Start(scope),
		loadFavoritesCmd(d.Client),
	)
}

func (m *marketModel) selectTab(tab int) tea.Cmd {
	m.tab = (tab + len(marketTabs)) % len(marketTabs)
	m.stocks, m.hasMore, m.total, m.cursor = nil, false, 0, 0
	m.loading = true
	m.err, m.status = "", ""
	scope := marketTabs[m.tab]
	return tea.Batch(m.listLoop.Start(scope), m.quoteLoop.Start(scope))
}

func (m marketModel) modal() bool {
	return m.searching || m.results != nil
}

// selected returns the symbol under the cursor.
func (m marketModel) selected() string {
	if m.results != nil {
		if m.cursor < len(m.results) {
			return m.results[m.cursor].Symbol
		}
		return ""
	}
	if m.cursor < len(m.stocks) {
		return m.stocks[m.cursor].Symbol
	}
	return ""
}

func (m marketModel) rows() int {
	if m.results != nil {
		return len(m.results)
	}
	return len(m.stocks)
}

func (m marketModel) update(msg tea.Msg, d Deps) (marketModel, tea.Cmd) {
	switch msg := msg.(type) {
	case poll.TickMsg:
		return m.tick(msg, d)

	case stocksMsg:
		if !m.listLoop.Accept(msg.gen) {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			if msg.more || len(m.stocks) == 0 {
				m.err = errorText(msg.err, "Failed to load stocks")
			}
			return m, nil
		}
		m.err = ""
		if msg.more {
			m.stocks = appendNew(m.stocks, msg.page.Stocks)
		} else {
			m.stocks = keepLastKnown(m.stocks, msg.page.Stocks)
		}
		m.hasMore, m.total = msg.page.HasMore, msg.page.Total
		if marketTabs[m.tab] == favoritesTab {
			m.favorites = symbolSet(m.stocks)
		}
		if m.results == nil && m.cursor >= len(m.stocks) {
			m.cursor = max(len(m.stocks)-1, 0)
		}
		return m, nil

	case quotesMsg:
		if accepts(m.quoteLoop, msg.loop, msg.gen) {
			m.stocks = mergeQuotes(m.stocks, msg.quotes)
		}
		return m, nil

	case marketsMsg:
		if accepts(m.marketLoop, msg.loop, msg.gen) && msg.err == nil {
			m.markets = msg.markets
		}
		return m, nil

	case favoritesMsg:
		if msg.err == nil {
			m.favorites = make(map[string]bool, len(msg.symbols))
			for _, s := range msg.symbols {
				m.favorites[s] = true
			}
		}
		return m, nil

	case favoriteToggledMsg:
		if msg.err != nil {
			m.err = errorText(msg.err, "Failed to update favorites")
			return m, nil
		}
		if msg.added {
			m.favorites[msg.symbol] = true
			m.status = "★ Added " + msg.symbol + " to favorites"
		} else {
			delete(m.favorites, msg.symbol)
			m.status = "Removed " + msg.symbol + " from favorites"
		}
		if marketTabs[m.tab] == favoritesTab {
			return m, m.listLoop.Start(favoritesTab)
		}
		return m, nil

	case searchMsg:
		if msg.query != m.query {
			return m, nil
		}
		if msg.err != nil {
			m.err = errorText(msg.err, "Search failed")
			return m, nil
		}
		m.results = msg.results
		if m.results == nil {
			m.results = []api.SearchResult{}
		}
		m.cursor = 0
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg, d)
		}
		return m.handleKeys(msg, d)
	}

	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m marketModel) tick(msg poll.TickMsg, d Deps) (marketModel, tea.Cmd) {
	switch {
	case m.listLoop.Owns(msg):
		fetch, next := m.listLoop.Tick(msg)
		if !fetch {
			return m, next
		}
		limit := max(len(m.stocks), pageSize)
		return m, tea.Batch(next, loadStocksCmd(d.Client, m.listLoop, 0, limit, false))

	case m.marketLoop.Owns(msg):
		fetch, next := m.marketLoop.Tick(msg)
		if !fetch {
			return m, next
		}
		return m, tea.Batch(next, fetchMarketsCmd(d.Client, m.marketLoop))

	case m.quoteLoop.Owns(msg):
		fetch, next := m.quoteLoop.Tick(msg)
		if !fetch {
			return m, next
		}
		// Closed venues do not move; unknown ones are skipped too.
		return m, tea.Batch(next, fetchQuotesCmd(d.Client, m.quoteLoop, poll.OpenSymbols(m.stocks, m.markets)))
	}
	return m, nil
}

func (m marketModel) handleKeys(msg tea.KeyMsg, d Deps) (marketModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		if m.results != nil {
			m.results, m.query, m.cursor = nil, "", 0
		}
		return m, nil

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, keys.Down):
		if m.cursor < m.rows()-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, keys.Enter):
		if sym := m.selected(); sym != "" {
			return m, navigate(StateStock, sym)
		}
		return m, nil

	case msg.String() == "/":
		m.searching = true
		m.err, m.status = "", ""
		m.search.SetValue(m.query)
		return m, m.search.Focus()

	case msg.String() == "f":
		sym := m.selected()
		if sym == "" {
			return m, nil
		}
		return m, toggleFavoriteCmd(d.Client, sym, !m.favorites[sym])
	}

	if m.results != nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Right):
		return m, m.selectTab(m.tab + 1)

	case key.Matches(msg, keys.Left):
		return m, m.selectTab(m.tab - 1)

	case key.Matches(msg, keys.Refresh):
		return m, m.selectTab(m.tab)

	case msg.String() == "n":
		if !m.hasMore || m.loading || marketTabs[m.tab] == favoritesTab {
			return m, nil
		}
		m.loading = true
		return m, loadStocksCmd(d.Client, m.listLoop, len(m.stocks), pageSize, true)
	}
	return m, nil
}

func (m marketModel) updateSearch(msg tea.KeyMsg, d Deps) (marketModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.searching = false
		m.search.Blur()
		return m, nil

	case key.Matches(msg, keys.Enter):
		m.searching = false
		m.search.Blur()
		query := strings.TrimSpace(m.search.Value())
		if query == "" {
			m.results, m.query, m.cursor = nil, "", 0
			return m, nil
		}
		m.query = query
		return m, searchCmd(d.Client, query)
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func loadStocksCmd(c *api.Client, l *poll.Loop, offset, limit int, more bool) tea.Cmd {
	scope, gen := l.Scope(), l.Gen()
	return func() tea.Msg {
		ctx := context.Background()
		if scope == favoritesTab {
			favs, err := c.Favorites(ctx)
			return stocksMsg{gen: gen, page: &api.StockPage{Stocks: favs, Total: len(favs)}, more: more, err: err}
		}
		page, err := c.Stocks(ctx, scope, limit, offset)
		if err != nil {
			glog.V(1).Infof("market.list %s: %v", scope, err)
		}
		return stocksMsg{gen: gen, page: page, more: more, err: err}
	}
}

func loadFavoritesCmd(c *api.Client) tea.Cmd {
	return func() tea.Msg {
		favs, err := c.Favorites(context.Background())
		symbols := make([]string, 0, len(favs))
		for _, q := range favs {
			symbols = append(symbols, q.Symbol)
		}
		return favoritesMsg{symbols: symbols, err: err}
	}
}

func toggleFavoriteCmd(c *api.Client, symbol string, add bool) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if add {
			err = c.AddFavorite(ctx, symbol)
		} else {
			err = c.RemoveFavorite(ctx, symbol)
		}
		return favoriteToggledMsg{symbol: symbol, added: add, err: err}
	}
}

func searchCmd(c *api.Client, query string) tea.Cmd {
	return func() tea.Msg {
		results, err := c.Search(context.Background(), query)
		return searchMsg{query: query, results: results, err: err}
	}
}

// appendNew appends the quotes of a further page, skipping symbols already
// listed by a concurrent refresh.
func appendNew(list, page []api.Quote) []api.Quote {
	seen := symbolSet(list)
	for _, q := range page {
		if !seen[q.Symbol] {
			list = append(list, q)
			seen[q.Symbol] = true
		}
	}
	return list
}

func symbolSet(quotes []api.Quote) map[string]bool {
	set := make(map[string]bool, len(quotes))
	for _, q := range quotes {
		set[q.Symbol] = true
	}
	return set
}

var stockWidths = []int{2, 2, 10, 26, 16, 10, 10}

func (m marketModel) view(d Deps) string {
	var b strings.Builder

	labels := make([]string, len(marketTabs))
	for i, t := range marketTabs {
		if t == favoritesTab {
			t = "★ " + t
		}
		labels[i] = t
	}
	b.WriteString(ui.Tabs(labels, m.tab) + "\n")
	b.WriteString(marketStatusLine(m.markets) + "\n\n")

	feedback(&b, m.err, m.status)

	if m.searching {
		b.WriteString("🔍 " + m.search.View() + "\n\n")
	}

	if m.results != nil {
		m.resultsView(&b)
		return b.String()
	}

	if m.loading && len(m.stocks) == 0 {
		b.WriteString(ui.LoadingStyle.Render("🔄 Loading stocks...") + "\n")
		return b.String()
	}
	if len(m.stocks) == 0 {
		b.WriteString(ui.DisabledStyle.Render("Nothing here yet.") + "\n")
		return b.String()
	}

	open := poll.OpenExchanges(m.markets)
	b.WriteString(header([]string{"", "", "SYMBOL", "NAME", "PRICE", "CHANGE", "EXCHANGE"}, stockWidths) + "\n")

	start := max(m.cursor-visibleRows+1, 0)
	end := min(start+visibleRows, len(m.stocks))
	for i := start; i < end; i++ {
		q := m.stocks[i]
		cursor := " "
		symbol := ui.UnselectedStyle.Render(q.Symbol)
		if i == m.cursor {
			cursor = ">"
			symbol = ui.SelectedStyle.Render(q.Symbol)
		}
		star := ""
		if m.favorites[q.Symbol] {
			star = "★"
		}
		price := ui.DisabledStyle.Render("n/a")
		if q.Price != nil {
			price = ui.FormatPrice(d.Currency.FormatNative(q.Price, q.Currency, currency.Decimals))
		}
		exchange := ui.DisabledStyle.Render(q.Exchange)
		if open[q.Exchange] {
			exchange = ui.PositiveStyle.Render(q.Exchange)
		}
		b.WriteString(row([]string{cursor, star, symbol, truncate(q.Name, 24), price, ui.FormatPercentage(q.Change), exchange}, stockWidths) + "\n")
	}

	fmt.Fprintf(&b, "\nShowing %d of %d", len(m.stocks), max(m.total, len(m.stocks)))
	if m.hasMore {
		b.WriteString(" • 'n' loads more")
	}
	if m.loading {
		b.WriteString(" • " + ui.LoadingStyle.Render("loading"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m marketModel) resultsView(b *strings.Builder) {
	fmt.Fprintf(b, "Results for %q\n\n", m.query)
	if len(m.results) == 0 {
		b.WriteString(ui.DisabledStyle.Render("No matches.") + "\n")
		return
	}
	for i, r := range m.results {
		cursor := " "
		symbol := ui.UnselectedStyle.Render(r.Symbol)
		if i == m.cursor {
			cursor = ">"
			symbol = ui.SelectedStyle.Render(r.Symbol)
		}
		star := ""
		if m.favorites[r.Symbol] {
			star = "★"
		}
		b.WriteString(row([]string{cursor, star, symbol, truncate(r.Name, 30), r.Exchange}, []int{2, 2, 10, 32, 10}) + "\n")
	}
}

func (m marketModel) footer(d Deps) string {
	switch {
	case m.searching:
		return "Enter to search • Esc to cancel"
	case m.results != nil:
		return "Enter to open • 'f' favorite • '/' new search • Esc to close results"
	}
	return fmt.Sprintf("←/→ category • Enter open • '/' search • 'f' favorite • 'r' refresh • 'Esc' menu • Open markets refresh every %s", d.Intervals.Quote)
}
