package page

import (
	"context"
	"slices"
	"sync"

	"coinboard/internal/metrics"
	"coinboard/internal/models"

	"github.com/sirupsen/logrus"
)

// Fetcher loads the market list for one currency
type Fetcher interface {
	FetchMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error)
}

// State is the UI state owned by a controller
type State struct {
	SearchTerm string
	SortOrder  models.SortOrder
	Selected   *models.CoinSummary
	Currency   models.Currency
}

// Snapshot is a consistent copy of the state together with the derived coin list
type Snapshot struct {
	State      State
	Coins      []models.CoinSummary
	TotalCoins int
	Generation uint64
}

// Controller owns the page state, performs the data fetch and derives the
// views. Event handlers and fetch completion are its only writers.
type Controller struct {
	fetcher Fetcher
	logger  *logrus.Logger

	mu    sync.RWMutex
	state State
	coins []models.CoinSummary

	// issued is bumped for every fetch started; applied is the generation
	// of the collection currently held. Only the latest issued fetch may apply.
	issued  uint64
	applied uint64

	subMu       sync.Mutex
	subscribers map[chan uint64]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a controller with default state for the given currency
func NewController(fetcher Fetcher, currency models.Currency, logger *logrus.Logger) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		fetcher: fetcher,
		logger:  logger,
		state: State{
			SortOrder: models.SortAscending,
			Currency:  currency,
		},
		coins:       []models.CoinSummary{},
		subscribers: make(map[chan uint64]struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Mount starts the initial fetch for the current currency
func (c *Controller) Mount() {
	c.mu.RLock()
	currency := c.state.Currency
	c.mu.RUnlock()

	c.fetchAsync(currency)
}

// Unmount cancels in-flight fetches, waits for them and closes all subscriptions
func (c *Controller) Unmount() {
	c.cancel()
	c.wg.Wait()

	c.subMu.Lock()
	for ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, ch)
	}
	c.subMu.Unlock()
}

// Wait blocks until every in-flight fetch has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// FetchMarketData fetches the market list for currency and, if no newer
// fetch was started meanwhile, replaces the whole collection. Failures are
// logged and leave the collection untouched.
func (c *Controller) FetchMarketData(ctx context.Context, currency models.Currency) {
	c.mu.Lock()
	c.issued++
	generation := c.issued
	c.mu.Unlock()

	coins, err := c.fetcher.FetchMarkets(ctx, currency)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"currency":   currency,
			"generation": generation,
		}).Error("Error fetching data")
		return
	}
	if coins == nil {
		coins = []models.CoinSummary{}
	}

	c.mu.Lock()
	if latest := c.issued; generation != latest {
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{
			"currency":   currency,
			"generation": generation,
			"latest":     latest,
		}).Debug("Discarding superseded market data")
		return
	}
	c.coins = coins
	c.applied = generation
	c.mu.Unlock()

	c.notify(generation)
}

func (c *Controller) fetchAsync(currency models.Currency) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.FetchMarketData(c.ctx, currency)
	}()
}

// OnSearch sets the search term verbatim
func (c *Controller) OnSearch(text string) {
	metrics.TrackEvent("search")
	c.mu.Lock()
	c.state.SearchTerm = text
	c.mu.Unlock()
}

// OnToggleSort flips the market cap sort direction
func (c *Controller) OnToggleSort() {
	metrics.TrackEvent("toggle_sort")
	c.mu.Lock()
	c.state.SortOrder = c.state.SortOrder.Toggle()
	c.mu.Unlock()
}

// OnSelectCoin stores a copy of coin as the selection. The copy is not
// refreshed when the collection is.
func (c *Controller) OnSelectCoin(coin models.CoinSummary) {
	metrics.TrackEvent("select_coin")
	c.mu.Lock()
	c.state.Selected = &coin
	c.mu.Unlock()
}

// OnCloseModal clears the selection
func (c *Controller) OnCloseModal() {
	metrics.TrackEvent("close_modal")
	c.mu.Lock()
	c.state.Selected = nil
	c.mu.Unlock()
}

// OnCurrencyChange sets the currency and re-fetches when it changed
func (c *Controller) OnCurrencyChange(code models.Currency) {
	metrics.TrackEvent("currency_change")
	c.mu.Lock()
	if c.state.Currency == code {
		c.mu.Unlock()
		return
	}
	c.state.Currency = code
	c.mu.Unlock()

	c.fetchAsync(code)
}

// State returns a copy of the current UI state
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyStateLocked()
}

// Coins returns a copy of the raw collection
func (c *Controller) Coins() []models.CoinSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.coins)
}

// Find looks a coin up by id in the raw collection
func (c *Controller) Find(id string) (models.CoinSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, coin := range c.coins {
		if coin.ID == id {
			return coin, true
		}
	}
	return models.CoinSummary{}, false
}

// Snapshot returns the state and the filtered, sorted coin list
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	state := c.copyStateLocked()
	coins := c.coins
	generation := c.applied
	c.mu.RUnlock()

	derived := Derive(coins, state)
	if derived == nil {
		derived = []models.CoinSummary{}
	}

	return Snapshot{
		State:      state,
		Coins:      derived,
		TotalCoins: len(coins),
		Generation: generation,
	}
}

func (c *Controller) copyStateLocked() State {
	state := c.state
	if state.Selected != nil {
		selected := *state.Selected
		state.Selected = &selected
	}
	return state
}

// Subscribe returns a channel receiving the generation of every applied
// fetch, and a function that cancels the subscription. When a collection
// has already been applied, its generation is delivered first.
func (c *Controller) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	c.subMu.Lock()
	c.mu.RLock()
	if c.applied > 0 {
		ch <- c.applied
	}
	c.mu.RUnlock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			c.subMu.Lock()
			if _, ok := c.subscribers[ch]; ok {
				delete(c.subscribers, ch)
				close(ch)
			}
			c.subMu.Unlock()
		})
	}

	return ch, unsubscribe
}

func (c *Controller) notify(generation uint64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for ch := range c.subscribers {
		// Keep only the newest generation for slow readers.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- generation:
		default:
		}
	}
}
