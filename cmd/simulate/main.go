// Command simulate runs a bot-only session of a built-in or file-based game
// and prints the final table.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
	"github.com/cardsmith/cardsmith-server-go/internal/session"
)

var (
	gameName   = flag.String("game", "crazy-eights", "built-in template to play ("+strings.Join(schema.TemplateNames(), ", ")+")")
	rulesFile  = flag.String("file", "", "YAML or JSON game document; overrides -game")
	bots       = flag.Int("bots", 3, "number of bot seats")
	seed       = flag.Int64("seed", 0, "deck seed; 0 picks one")
	maxActions = flag.Int("max-actions", 1000, "stop after this many bot actions")
	enrich     = flag.Bool("enrich", true, "run the enrichment pipeline")
	revert     = flag.Duration("revert", 10*time.Millisecond, "flip revert and peek delay")
	verbose    = flag.Bool("v", false, "log engine activity")
)

func main() {
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			pterm.Error.Println(err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	rules, err := loadRules()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	rules.Setup.BotOnly = true

	m := session.NewManager(logger, session.Options{
		Engine:        engine.Options{Seed: *seed, RevertDelay: *revert, PeekDelay: *revert},
		MaxBotActions: *maxActions,
	})
	s, err := m.Create(rules, session.CreateOptions{Enrich: *enrich, Seed: *seed})
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	for i := 0; i < *bots; i++ {
		if _, err := m.Join(s.ID, fmt.Sprintf("Bot %d", i+1), engine.KindBot); err != nil {
			pterm.Warning.Printfln("seat %d: %v", i+1, err)
			break
		}
	}

	pterm.DefaultHeader.WithFullWidth().Println(s.Engine.Rules().Name)
	printList("Enrichments", s.Enrichments)
	printList("IR issues", s.IRIssues)

	spinner, _ := pterm.DefaultSpinner.Start("Bots are playing")
	start := time.Now()
	err = m.Start(context.Background(), s.ID)
	if spinner != nil {
		if err != nil {
			spinner.Fail(err.Error())
		} else {
			spinner.Success(fmt.Sprintf("Played in %s", time.Since(start).Round(time.Millisecond)))
		}
	}
	if err != nil {
		os.Exit(1)
	}

	view, err := m.View(s.ID, "")
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	printTable(view)
	printResult(view)
}

func loadRules() (*schema.GameRules, error) {
	if *rulesFile != "" {
		return schema.LoadFile(*rulesFile)
	}
	return schema.Template(*gameName)
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	pterm.DefaultSection.Println(title)
	bullets := make([]pterm.BulletListItem, len(items))
	for i, item := range items {
		bullets[i] = pterm.BulletListItem{Level: 0, Text: item}
	}
	_ = pterm.DefaultBulletList.WithItems(bullets).Render()
}

func printTable(v *engine.View) {
	data := pterm.TableData{{"Seat", "Kind", "Cards", "Score", "Played", "Status"}}
	for _, p := range v.Players {
		status := pterm.LightGreen("in")
		switch {
		case p.ID == v.Winner:
			status = pterm.LightYellow("winner")
		case p.Eliminated:
			status = pterm.LightRed("eliminated")
		case p.Folded:
			status = pterm.LightRed("folded")
		case p.Busted:
			status = pterm.LightRed("busted")
		case p.Stood:
			status = pterm.Cyan("stood")
		}
		data = append(data, []string{
			p.Name,
			string(p.Kind),
			strconv.Itoa(p.HandCount),
			strconv.Itoa(p.Score),
			strconv.Itoa(p.CardsPlayed),
			status,
		})
	}
	pterm.DefaultSection.Println("Table")
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	pterm.Info.Printfln("turn %d, round %d, deck %d, discard %d, emergency cards %d",
		v.Turn, v.Round, v.DeckCount, len(v.Discard), v.EmergencyCards)
}

func printResult(v *engine.View) {
	box := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	if v.Status != engine.StatusFinished {
		box.WithTitle(pterm.LightYellow("|UNFINISHED|")).WithTitleTopCenter().Println(
			fmt.Sprintf("stopped at the action cap in phase %s", v.Phase))
		return
	}
	winner := "nobody"
	if p := v.Player(v.Winner); p != nil {
		winner = pterm.LightCyan(p.Name)
	}
	box.WithTitle(pterm.LightGreen("|RESULT|")).WithTitleTopCenter().Println(winner + " wins")
}
