package agent

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/lulo-labs/lulo/internal/browser"
	"github.com/lulo-labs/lulo/internal/dispatch"
	"github.com/lulo-labs/lulo/internal/observability"
	"github.com/lulo-labs/lulo/internal/plan"
	"github.com/lulo-labs/lulo/internal/planner"
	"github.com/lulo-labs/lulo/internal/store"
)

// Agent handles one user request end to end: capture page context,
// obtain a plan, dispatch it, record the report. Only the failure to
// obtain a plan at all escalates as an overall failure; everything
// past that point is the dispatcher's smallest-scope recovery.
type Agent struct {
	Planner    *planner.Planner
	Dispatcher *dispatch.Dispatcher
	Driver     *browser.Driver
	Store      *store.Store
	Logger     *observability.Logger
}

func New(pl *planner.Planner, disp *dispatch.Dispatcher, drv *browser.Driver, st *store.Store, logger *observability.Logger) *Agent {
	return &Agent{Planner: pl, Dispatcher: disp, Driver: drv, Store: st, Logger: logger}
}

// historyDepth bounds how many past exchanges are replayed to the
// planner per request.
const historyDepth = 5

// Handle processes one natural-language request and returns its report.
func (a *Agent) Handle(ctx context.Context, chatID, input string) plan.Report {
	if rep, handled := a.handleCommand(chatID, input); handled {
		return rep
	}

	observability.SetStatus(observability.RolePlanning, input)
	defer observability.SetStatus(observability.RoleIdle, "")

	if !a.Driver.IsRunning() {
		if res := a.Driver.Launch(ctx); !res.Success {
			return plan.Report{Success: false, Error: res.Error}
		}
	}

	page := planner.PageContext{}
	if tab := a.Driver.ActiveTab(); tab != nil {
		if url, title, err := tab.Location(ctx); err == nil {
			page = planner.PageContext{URL: url, Title: title}
		}
	}

	p, err := a.Planner.BuildPlan(ctx, chatID, input, page, a.recentExchanges(chatID))
	if err != nil {
		// Transport failure reaching the planner: no plan, no dispatch.
		return plan.Report{Success: false, Error: err.Error()}
	}

	observability.SetStatus(observability.RoleDispatching, input)
	rep := a.Dispatcher.Dispatch(ctx, chatID, p)

	if a.Store != nil {
		if err := a.Store.AddRequest(chatID, input, rep); err != nil {
			log.Printf("failed to record request: %v", err)
		}
	}
	return rep
}

// recentExchanges loads the chat's latest request/reply pairs for the
// planner context. A store failure just means a context-free plan.
func (a *Agent) recentExchanges(chatID string) []planner.Exchange {
	if a.Store == nil {
		return nil
	}
	recent, err := a.Store.RecentRequests(chatID, historyDepth)
	if err != nil {
		log.Printf("failed to load request history: %v", err)
		return nil
	}
	exchanges := make([]planner.Exchange, 0, len(recent))
	for _, r := range recent {
		exchanges = append(exchanges, planner.Exchange{Input: r.Input, Reply: r.Reply})
	}
	return exchanges
}

// handleCommand intercepts chat commands that manage scheduled
// automations; anything else goes to the planner.
func (a *Agent) handleCommand(chatID, input string) (plan.Report, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return plan.Report{}, false
	}

	switch fields[0] {
	case "/schedule":
		if a.Store == nil {
			return plan.Report{Success: false, Error: "no store configured for scheduling"}, true
		}
		if len(fields) < 3 {
			return plan.Report{Success: false, Error: "usage: /schedule <interval-seconds> <request>"}, true
		}
		seconds, err := strconv.Atoi(fields[1])
		if err != nil || seconds < 0 {
			return plan.Report{Success: false, Error: "usage: /schedule <interval-seconds> <request>"}, true
		}
		request := strings.Join(fields[2:], " ")
		if err := a.Store.AddTask(chatID, request, seconds); err != nil {
			return plan.Report{Success: false, Error: err.Error()}, true
		}
		reply := fmt.Sprintf("Scheduled %q to run every %d seconds.", request, seconds)
		if seconds == 0 {
			reply = fmt.Sprintf("Scheduled %q to run once.", request)
		}
		return plan.Report{Success: true, Reply: reply}, true

	case "/unschedule":
		if a.Store == nil {
			return plan.Report{Success: false, Error: "no store configured for scheduling"}, true
		}
		if err := a.Store.ClearTasks(chatID); err != nil {
			return plan.Report{Success: false, Error: err.Error()}, true
		}
		return plan.Report{Success: true, Reply: "Cleared all scheduled automations for this chat."}, true
	}

	return plan.Report{Success: false, Error: fmt.Sprintf("unknown command %s", fields[0])}, true
}
