package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"gridcourier/internal/trace"
)

const decisionWindow = 250

func main() {
	dbPath := flag.String("db", "gridcourier.db", "trace db path")
	interval := flag.Duration("interval", time.Second, "refresh interval")
	flag.Parse()

	store, err := trace.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open trace store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()
	if err := store.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate trace store: %v\n", err)
		os.Exit(1)
	}

	app := tview.NewApplication()

	sessionsTable := tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false)
	sessionsTable.SetTitle("Sessions (Enter inspect, F5 refresh, F10 quit)").SetBorder(true)

	decisionsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	decisionsView.SetTitle("Decisions").SetBorder(true)

	statusView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
	statusView.SetBorder(true).SetTitle("Status")
	statusView.SetText(fmt.Sprintf("Tailing %s | shortcuts: F10 quit, F5 refresh, Ctrl+T focus sessions", *dbPath))

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewFlex().
			AddItem(sessionsTable, 0, 1, true).
			AddItem(decisionsView, 0, 2, false), 0, 12, true).
		AddItem(statusView, 3, 0, false)

	var mu sync.Mutex
	var selectedSession string
	var sessions []trace.Session

	renderSessions := func(items []trace.Session) {
		sessionsTable.Clear()
		headers := []string{"SESSION", "AGENT", "TEAMMATE", "STARTED"}
		for col, h := range headers {
			sessionsTable.SetCell(0, col, tview.NewTableCell("[::b]"+h).SetSelectable(false))
		}
		for row, s := range items {
			sessionsTable.SetCell(row+1, 0, tview.NewTableCell(shortID(s.ID)))
			sessionsTable.SetCell(row+1, 1, tview.NewTableCell(s.AgentID))
			sessionsTable.SetCell(row+1, 2, tview.NewTableCell(s.TeammateID))
			sessionsTable.SetCell(row+1, 3, tview.NewTableCell(s.StartedAt.Format("15:04:05")))
		}
	}

	renderDecisions := func(items []trace.Decision) {
		var b strings.Builder
		for _, d := range items {
			fmt.Fprintf(&b, "[gray]%s[-] [yellow]%-18s[-] %-22s %s\n",
				d.CreatedAt.Format("15:04:05"), d.Actor, d.Action, d.Reason)
		}
		decisionsView.SetText(b.String())
		decisionsView.ScrollToEnd()
	}

	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		items, err := store.Sessions(ctx)
		if err != nil {
			app.QueueUpdateDraw(func() {
				statusView.SetText(fmt.Sprintf("[red]sessions: %v", err))
			})
			return
		}
		mu.Lock()
		sessions = items
		selected := selectedSession
		if selected == "" && len(items) > 0 {
			selected = items[0].ID
			selectedSession = selected
		}
		mu.Unlock()

		var decisions []trace.Decision
		if selected != "" {
			recent, err := store.Recent(ctx, selected, decisionWindow)
			if err != nil {
				app.QueueUpdateDraw(func() {
					statusView.SetText(fmt.Sprintf("[red]decisions: %v", err))
				})
				return
			}
			// Recent is newest first; the view reads top-down.
			for i := len(recent) - 1; i >= 0; i-- {
				decisions = append(decisions, recent[i])
			}
		}

		app.QueueUpdateDraw(func() {
			renderSessions(items)
			renderDecisions(decisions)
			statusView.SetText(fmt.Sprintf("Tailing %s | %d session(s) | selected %s | updated %s",
				*dbPath, len(items), shortID(selected), time.Now().Format("15:04:05")))
		})
	}

	sessionsTable.SetSelectedFunc(func(row, col int) {
		mu.Lock()
		if row >= 1 && row-1 < len(sessions) {
			selectedSession = sessions[row-1].ID
		}
		mu.Unlock()
		go refresh()
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyF10, event.Rune() == 'q':
			app.Stop()
			return nil
		case event.Key() == tcell.KeyF5:
			go refresh()
			return nil
		case event.Key() == tcell.KeyCtrlT:
			app.SetFocus(sessionsTable)
			return nil
		}
		return event
	})

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		refresh()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	// tview owns the terminal; keep the standard logger quiet.
	log.SetOutput(io.Discard)

	if err := app.SetRoot(root, true).SetFocus(sessionsTable).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}
	close(stop)
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
