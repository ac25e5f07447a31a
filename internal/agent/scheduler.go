package agent

import (
	"context"
	"log"
	"time"

	"github.com/lulo-labs/lulo/internal/store"
)

// Messenger pushes scheduled-run output back to the originating chat.
type Messenger interface {
	Send(chatID string, text string) error
}

// Scheduler re-dispatches stored automation requests on their
// interval. One-time tasks (interval 0) are deleted after running.
type Scheduler struct {
	Agent   *Agent
	Store   *store.Store
	Gateway Messenger
}

func NewScheduler(agent *Agent, st *store.Store, gateway Messenger) *Scheduler {
	return &Scheduler{Agent: agent, Store: st, Gateway: gateway}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Println("Task scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndExecute(ctx)
		}
	}
}

func (s *Scheduler) pollAndExecute(ctx context.Context) {
	tasks, err := s.Store.PendingTasks()
	if err != nil {
		log.Printf("Error polling tasks: %v", err)
		return
	}

	for _, t := range tasks {
		log.Printf("Executing scheduled task %d for chat %s: %s", t.ID, t.ChatID, t.Request)

		rep := s.Agent.Handle(ctx, t.ChatID, t.Request)

		if err := s.Store.UpdateTaskLastRun(t.ID); err != nil {
			log.Printf("Error updating last run for task %d: %v", t.ID, err)
		}

		if t.IntervalSeconds == 0 {
			if err := s.Store.DeleteTask(t.ChatID, t.ID); err != nil {
				log.Printf("Error deleting one-time task %d: %v", t.ID, err)
			}
		}

		if s.Gateway != nil {
			text := rep.Reply
			if !rep.Success {
				text = "Scheduled run failed: " + rep.Error
			}
			s.Gateway.Send(t.ChatID, "⏰ *Scheduled Automation*\n\n"+text)
		}
	}
}
