package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nidhogg/codsworth/internal/briefing"
	"github.com/nidhogg/codsworth/internal/engine"
	"github.com/nidhogg/codsworth/internal/provider"
)

// SessionWriter is the write side of the session cache. After a batch
// mutates an entity the fresh persisted state is written through so the
// next briefing in the same conversation sees it even if the read replica
// lags.
type SessionWriter interface {
	PutLists(ctx context.Context, userID string, lists []*engine.List) error
	PutSchedules(ctx context.Context, userID string, schedules []*engine.Schedule) error
	PutMemory(ctx context.Context, userID string, categories []*engine.MemoryCategory) error
}

// Assistant turns a user message into a reply plus executed actions: build
// the entity briefing, ask the model for a JSON action envelope, parse it,
// dispatch the batch, and write the resulting state through to the session.
type Assistant struct {
	router     *provider.Router
	model      string
	repo       engine.Repository
	dispatcher *engine.Dispatcher
	builder    *briefing.Builder
	session    SessionWriter
	indexer    MemoryIndexer
	history    HistoryStore
	logger     *zap.Logger
}

// MemoryIndexer mirrors stored memories into a semantic search index.
type MemoryIndexer interface {
	Store(ctx context.Context, userID, category string, item *engine.MemoryItem) error
}

// HistoryStore persists conversation turns so the model keeps context
// across messages.
type HistoryStore interface {
	RecentMessages(ctx context.Context, userID string, limit int) ([]provider.Message, error)
	AppendMessage(ctx context.Context, userID, role, content string) error
}

// historyLimit bounds how many past turns are replayed to the model.
const historyLimit = 20

// New wires an assistant. session may be nil.
func New(router *provider.Router, model string, repo engine.Repository, builder *briefing.Builder, session SessionWriter, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		router:     router,
		model:      model,
		repo:       repo,
		dispatcher: engine.NewDispatcher(repo, logger),
		builder:    builder,
		session:    session,
		logger:     logger,
	}
}

// SetIndexer enables semantic indexing of newly stored memories.
func (a *Assistant) SetIndexer(ix MemoryIndexer) { a.indexer = ix }

// SetHistory enables persisted conversation context.
func (a *Assistant) SetHistory(h HistoryStore) { a.history = h }

// Reply is what the user sees plus the batch outcome for callers that
// want it.
type Reply struct {
	Text  string
	Batch engine.BatchResult
}

const systemPrompt = `You are Codsworth, a courteous household assistant managing the user's lists, schedules, and memories.

Always answer with a single JSON object:
{"response": "<what you say to the user>", "actions": [ ... ]}

Each action has a "type" and a "data" object. Supported types:
create_list, add_to_list, update_list, delete_list,
create_schedule, add_event, edit_event, delete_event, delete_schedule,
create_memory, store_memory, update_memory, delete_memory_item, delete_memory.

update_list takes "operation": complete, uncomplete, edit, or remove, plus "itemId".
Dates may be natural language ("tomorrow at 3pm", "mañana por la tarde"); they are resolved server-side.
When an entity already exists, reference it by its exact name from the briefing below. Answer with no actions when the user is only asking a question.`

// Handle processes one user message end to end.
func (a *Assistant) Handle(ctx context.Context, userID, message string) (*Reply, error) {
	snap := a.builder.Build(ctx, userID)

	messages := []provider.Message{
		{Role: "system", Content: systemPrompt + "\n\n" + snap.Render()},
	}
	if a.history != nil {
		past, err := a.history.RecentMessages(ctx, userID, historyLimit)
		if err != nil {
			a.logger.Warn("history read failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			messages = append(messages, past...)
		}
	}
	messages = append(messages, provider.Message{Role: "user", Content: message})

	req := &provider.ChatRequest{
		Model:    a.model,
		Messages: messages,
	}
	resp, err := a.router.Route(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("route chat: %w", err)
	}

	text, actions, err := engine.ParseActions(resp.Content)
	if err != nil {
		a.logger.Warn("unparseable assistant payload",
			zap.String("user_id", userID), zap.Error(err))
		return &Reply{Text: resp.Content}, nil
	}

	reply := &Reply{Text: text}
	if len(actions) > 0 {
		reply.Batch = a.dispatcher.Dispatch(ctx, userID, actions)
		a.logger.Info("batch dispatched",
			zap.String("user_id", userID),
			zap.Int("succeeded", reply.Batch.Succeeded),
			zap.Int("failed", reply.Batch.Failed))
		a.writeThrough(ctx, userID)
		a.indexMemories(ctx, userID, reply.Batch)
	}
	a.recordTurn(ctx, userID, message, reply.Text)
	return reply, nil
}

// recordTurn persists both sides of the exchange; failures only warn.
func (a *Assistant) recordTurn(ctx context.Context, userID, userMsg, replyText string) {
	if a.history == nil {
		return
	}
	if err := a.history.AppendMessage(ctx, userID, "user", userMsg); err != nil {
		a.logger.Warn("history write failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if replyText == "" {
		return
	}
	if err := a.history.AppendMessage(ctx, userID, "assistant", replyText); err != nil {
		a.logger.Warn("history write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Execute dispatches a pre-parsed action batch without involving the
// language model.
func (a *Assistant) Execute(ctx context.Context, userID string, actions []engine.Action) engine.BatchResult {
	batch := a.dispatcher.Dispatch(ctx, userID, actions)
	if batch.Succeeded > 0 {
		a.writeThrough(ctx, userID)
		a.indexMemories(ctx, userID, batch)
	}
	return batch
}

// indexMemories pushes each successfully stored memory into the semantic
// index. Index failures are logged, never surfaced to the user.
func (a *Assistant) indexMemories(ctx context.Context, userID string, batch engine.BatchResult) {
	if a.indexer == nil {
		return
	}
	for _, r := range batch.Results {
		if !r.Success || r.Type != "store_memory" {
			continue
		}
		data, ok := r.Data.(map[string]any)
		if !ok {
			continue
		}
		item, ok := data["item"].(*engine.MemoryItem)
		if !ok {
			continue
		}
		category, _ := data["category"].(string)
		if err := a.indexer.Store(ctx, userID, category, item); err != nil {
			a.logger.Warn("memory index failed",
				zap.String("user_id", userID),
				zap.String("key", item.Key),
				zap.Error(err))
		}
	}
}

// Briefing exposes the merged snapshot for callers that render it
// directly.
func (a *Assistant) Briefing(ctx context.Context, userID string) *briefing.Snapshot {
	return a.builder.Build(ctx, userID)
}

func (a *Assistant) writeThrough(ctx context.Context, userID string) {
	if a.session == nil {
		return
	}
	if lists, err := a.repo.ListAll(ctx, userID); err == nil {
		if err := a.session.PutLists(ctx, userID, lists); err != nil {
			a.logger.Warn("session write-through failed", zap.String("domain", "lists"), zap.Error(err))
		}
	}
	if schedules, err := a.repo.ScheduleAll(ctx, userID); err == nil {
		if err := a.session.PutSchedules(ctx, userID, schedules); err != nil {
			a.logger.Warn("session write-through failed", zap.String("domain", "schedules"), zap.Error(err))
		}
	}
	if categories, err := a.repo.MemoryAll(ctx, userID); err == nil {
		if err := a.session.PutMemory(ctx, userID, categories); err != nil {
			a.logger.Warn("session write-through failed", zap.String("domain", "memory"), zap.Error(err))
		}
	}
}
