package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/awilliams/predmarket/pkg/market"
	"github.com/awilliams/predmarket/pkg/registry"
	"github.com/awilliams/predmarket/pkg/store"
)

const helpText = `commands:
  markets                          list this tenant's markets
  create <name> <seed> <liquidity> [description]
  use <name>                       set the active market
  open | close                     start or stop trading
  stock <name>                     add a stock (market must be closed)
  stocks                           list stocks with price and probability
  join <name>                      register as a player
  players                          list players and their shares
  player <name>                    show one player
  buy <player> <stock> <amount>
  sell <player> <stock> <amount|all>
  predict                          most likely outcome right now
  quit`

// console is the interactive front end: it parses one command per line and
// delegates everything to the registry. No market logic lives here.
type console struct {
	mgr    *registry.Manager
	tenant string
	in     io.Reader
	out    io.Writer
}

func newConsole(mgr *registry.Manager, tenant string, in io.Reader, out io.Writer) *console {
	return &console{mgr: mgr, tenant: tenant, in: in, out: out}
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) run() error {
	ctx := context.Background()
	scanner := bufio.NewScanner(c.in)
	c.printf("marketbot ready. type help for commands.")
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := c.dispatch(ctx, cmd, args); err != nil {
			c.printf("error: %v", err)
		}
	}
}

func (c *console) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		c.printf("%s", helpText)
		return nil
	case "markets":
		return c.listMarkets(ctx)
	case "create":
		return c.createMarket(ctx, args)
	case "use":
		return c.useMarket(ctx, args)
	case "open", "close":
		return c.openClose(ctx, cmd)
	case "stock":
		return c.addStock(ctx, args)
	case "stocks":
		return c.listStocks(ctx)
	case "join":
		return c.join(ctx, args)
	case "players":
		return c.listPlayers(ctx)
	case "player":
		return c.showPlayer(ctx, args)
	case "buy", "sell":
		return c.trade(ctx, cmd, args)
	case "predict":
		return c.predict(ctx)
	}
	c.printf("unknown command %q. type help for commands.", cmd)
	return nil
}

func (c *console) session(ctx context.Context) (*registry.Session, error) {
	sess, err := c.mgr.ActiveMarket(ctx, c.tenant)
	if err == store.ErrNoActiveMarket {
		return nil, fmt.Errorf("no active market; create one and `use` it")
	}
	return sess, err
}

func (c *console) listMarkets(ctx context.Context) error {
	listings, err := c.mgr.ListMarkets(ctx, c.tenant)
	if err != nil {
		return err
	}
	if len(listings) == 0 {
		c.printf("no markets")
		return nil
	}
	for _, l := range listings {
		c.printf("%s - %s", l.Name, l.Description)
	}
	return nil
}

func (c *console) createMarket(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: create <name> <seed> <liquidity> [description]")
	}
	seed, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("bad seed money %q", args[1])
	}
	liquidity, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad liquidity %q", args[2])
	}
	created, err := c.mgr.CreateMarket(ctx, c.tenant, args[0], strings.Join(args[3:], " "), seed, liquidity)
	if err != nil {
		return err
	}
	if !created {
		c.printf("a market named %s already exists", args[0])
		return nil
	}
	c.printf("created market %s", args[0])
	return nil
}

func (c *console) useMarket(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <name>")
	}
	ok, err := c.mgr.SetActiveMarket(ctx, c.tenant, args[0])
	if err != nil {
		return err
	}
	if !ok {
		c.printf("no market named %s", args[0])
		return nil
	}
	c.printf("active market is now %s", args[0])
	return nil
}

func (c *console) openClose(ctx context.Context, cmd string) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	var changed bool
	if cmd == "open" {
		changed, err = sess.Open(ctx)
	} else {
		changed, err = sess.Close(ctx)
	}
	if err != nil {
		return err
	}
	if !changed {
		c.printf("market was already %s", cmd)
		return nil
	}
	c.printf("market is now %s", cmd)
	return nil
}

func (c *console) addStock(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stock <name>")
	}
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	sv, err := sess.AddStock(ctx, args[0])
	if err != nil {
		return err
	}
	c.printf("stock %s (%s)", sv.Name, sv.ID)
	return nil
}

func (c *console) listStocks(ctx context.Context) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	stocks, err := sess.ListStocks()
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		c.printf("no stocks")
		return nil
	}
	for _, s := range stocks {
		c.printf("%-12s sold %-5d price %.2f probability %.4f", s.Name, s.NumberSold, s.CurrentPrice, s.CurrentProbability)
	}
	return nil
}

func (c *console) join(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: join <name>")
	}
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	pv, err := sess.AddPlayer(ctx, args[0], args[0])
	if err == market.ErrDuplicatePlayer {
		c.printf("%s already joined", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	c.printf("%s joined with %.2f", pv.Name, pv.Money)
	return nil
}

func (c *console) playerLine(pv market.PlayerView) string {
	names := make([]string, 0, len(pv.Shares))
	for name := range pv.Shares {
		names = append(names, name)
	}
	sort.Strings(names)
	shares := make([]string, 0, len(names))
	for _, name := range names {
		shares = append(shares, fmt.Sprintf("%s:%d", name, pv.Shares[name]))
	}
	return fmt.Sprintf("%-12s money %.2f shares %s", pv.Name, pv.Money, strings.Join(shares, " "))
}

func (c *console) listPlayers(ctx context.Context) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	players := sess.ListPlayers()
	if len(players) == 0 {
		c.printf("no players")
		return nil
	}
	for _, pv := range players {
		c.printf("%s", c.playerLine(pv))
	}
	return nil
}

func (c *console) showPlayer(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: player <name>")
	}
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	pv, ok := sess.GetPlayer(args[0])
	if !ok {
		c.printf("no player named %s", args[0])
		return nil
	}
	c.printf("%s", c.playerLine(pv))
	return nil
}

func (c *console) trade(ctx context.Context, cmd string, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: %s <player> <stock> <amount>", cmd)
	}
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	stock, ok := sess.StockByName(args[1])
	if !ok {
		c.printf("no stock named %s", args[1])
		return nil
	}

	var amount int
	if cmd == "sell" && args[2] == "all" {
		amount = sess.Holding(args[0], stock.ID)
	} else {
		amount, err = strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("bad amount %q", args[2])
		}
	}

	var res market.TradeResult
	if cmd == "buy" {
		res, err = sess.Buy(ctx, args[0], stock.ID, amount)
	} else {
		res, err = sess.Sell(ctx, args[0], stock.ID, amount)
	}
	if err != nil {
		return err
	}
	if !res.Success {
		c.printf("%s", res.Message)
		return nil
	}
	verb := "bought"
	if cmd == "sell" {
		verb = "sold"
	}
	c.printf("%s %s %d %s for %.2f", res.Player, verb, amount, res.Stock, math.Abs(res.Cost))
	return nil
}

func (c *console) predict(ctx context.Context) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}
	name, prob, err := sess.Predict()
	if err == market.ErrNoStocks {
		c.printf("no stocks to predict on")
		return nil
	}
	if err != nil {
		return err
	}
	c.printf("most likely outcome: %s (%.1f%%)", name, prob*100)
	return nil
}
